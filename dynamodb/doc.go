// Package dynamodb is the persistence layer of the whiteboard backend: a
// single DynamoDB table holding teams, members, boards, trash records,
// elements and live sessions.
//
// # Overview
//
// Records are addressed by a partition key ("pk") and a type-prefixed sort
// key ("sk") built by the keys package. Three Global Secondary Indexes, all
// projecting every attribute, support the remaining access paths:
//
//   - [GSI1] lists a board's elements in saved order.
//   - [GSI2] maps a connection to its session and a user to their teams.
//   - [GSI3] lists a team's trashed boards, newest deletion first.
//
// # Getting Started
//
// Build a [Client] with [New] and open it with [Client.Connect]:
//
//	store := dynamodb.New(&awsCfg, "boards",
//	    dynamodb.WithSessionTimeToLive(time.Hour),
//	    dynamodb.WithEndpoint("http://localhost:8000"),
//	)
//	if err := store.Connect(); err != nil {
//	    return err
//	}
//
// [Client.Connect] builds the SDK client from the [aws.Config] unless
// [WithAPI] supplied one; tests inject the in-memory table from
// internal/dynamotest that way.
//
// # Element Replacement
//
// [Client.ReplaceElements] validates the whole element set, deletes the
// board's existing element records and writes the new ones in batches of
// 25. Unprocessed batch items are resubmitted with exponential backoff; once
// the retries configured by [WithBatchMaxRetries] are spent the call fails
// with an error wrapping types.ErrTransient. Replacement is not atomic.
//
// # TTL Behaviour
//
// Session records carry a ttl attribute (Unix seconds) one hour after
// registration by default. DynamoDB's TTL deletion is lazy, so
// [Client.ExpiredSessions] lets a sweeper find leases that have elapsed.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb
