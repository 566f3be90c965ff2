// Package dispatch turns change-stream records into push notifications for
// every session watching the changed board.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/fanout"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/keys"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// SessionLister lists the sessions bound to a board.
type SessionLister interface {
	ListSessions(ctx context.Context, boardID string) ([]types.Session, error)
}

// Status is the result of processing one change record.
type Status int

const (
	// OutcomeIgnored marks records that are not element mutations.
	OutcomeIgnored Status = iota
	// OutcomePushed marks element mutations whose sessions were notified.
	OutcomePushed
	// OutcomeFailed marks records whose sessions could not be resolved.
	OutcomeFailed
)

func (s Status) String() string {
	switch s {
	case OutcomeIgnored:
		return "ignored"
	case OutcomePushed:
		return "pushed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome reports what happened to one change record.
type Outcome struct {
	EventID string
	BoardID string
	Status  Status
	Report  fanout.Report
	Err     error
}

// Dispatcher notifies sessions of element changes. It holds no mutable state
// and is safe for concurrent use.
type Dispatcher struct {
	sessions SessionLister
	fanout   *fanout.Fanout
	logger   types.Logger
}

func New(sessions SessionLister, f *fanout.Fanout, logger types.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		fanout:   f,
		logger:   logger.WithField("component", "dispatch"),
	}
}

// Process handles records one at a time, in order, and returns one outcome
// per record. A record that fails never stops the records after it.
func (d *Dispatcher) Process(ctx context.Context, records []ChangeRecord) []Outcome {
	outcomes := make([]Outcome, 0, len(records))

	for i := range records {
		outcomes = append(outcomes, d.processRecord(ctx, &records[i]))
	}

	return outcomes
}

// HandleLambdaEvent is the stream-triggered Lambda entry point. Records whose
// sessions could not be resolved are reported as batch item failures so the
// platform retries them; push failures never fail the batch.
func (d *Dispatcher) HandleLambdaEvent(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var response events.DynamoDBEventResponse

	records, err := FromLambdaEvent(event)
	if err != nil {
		d.logger.Errorf("Skipping undecodable stream records: %v", err)
	}

	for _, outcome := range d.Process(ctx, records) {
		if outcome.Status == OutcomeFailed {
			response.BatchItemFailures = append(response.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: outcome.EventID,
			})
		}
	}

	return response, nil
}

// elementImage is the part of an element record the notification needs.
type elementImage struct {
	TeamID    string `dynamodbav:"teamId"`
	ElementID string `dynamodbav:"elementId"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

func (d *Dispatcher) processRecord(ctx context.Context, record *ChangeRecord) Outcome {
	outcome := Outcome{EventID: record.EventID, Status: OutcomeIgnored}

	var key struct {
		PK string `dynamodbav:"pk"`
		SK string `dynamodbav:"sk"`
	}

	if err := attributevalue.UnmarshalMap(record.Keys, &key); err != nil {
		d.logger.WithField("event_id", record.EventID).Warnf("Ignoring stream record with unreadable keys: %v", err)
		return outcome
	}

	boardID, err := keys.BoardIDFromPK(key.PK)
	if err != nil || !keys.IsElementSK(key.SK) {
		return outcome
	}

	outcome.BoardID = boardID
	logger := d.logger.WithField("event_id", record.EventID).WithField("board_id", boardID)

	var image elementImage
	if err := attributevalue.UnmarshalMap(record.image(), &image); err != nil {
		logger.Warnf("Failed to read element image: %v", err)
	}

	if image.ElementID == "" {
		image.ElementID, _ = keys.ElementIDFromSK(key.SK)
	}

	payload, err := json.Marshal(types.ElementUpdate{
		Type:      types.ElementUpdateType,
		BoardID:   boardID,
		ElementID: image.ElementID,
		EventKind: record.EventName,
		UpdatedAt: image.UpdatedAt,
		TeamID:    image.TeamID,
	})
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = fmt.Errorf("failed to encode element update: %w", err)
		logger.Error(outcome.Err.Error())
		return outcome
	}

	sessions, err := d.sessions.ListSessions(ctx, boardID)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = fmt.Errorf("failed to list sessions of board %s: %w", boardID, err)
		logger.Errorf("Failed to list sessions: %v", err)
		return outcome
	}

	outcome.Status = OutcomePushed
	outcome.Report = d.fanout.Send(ctx, sessions, payload, "")

	logger.
		WithField("delivered", outcome.Report.Delivered).
		WithField("gone", outcome.Report.Gone).
		WithField("failed", outcome.Report.Failed).
		Debug("Element change dispatched")

	return outcome
}
