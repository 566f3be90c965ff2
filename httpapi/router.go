// Package httpapi exposes boards, elements and teams over a small JSON REST
// API routed with gorilla/mux.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dynamodb"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

const (
	DefaultTeamID = "default"

	TeamHeader = "X-Excalidraw-Team-Id"
	UserHeader = "X-Excalidraw-User-Id"

	maxBodyBytes = 10 << 20
)

// Store is the part of the DynamoDB store the API serves.
type Store interface {
	CreateBoard(ctx context.Context, in dynamodb.CreateBoardInput) (*types.Board, error)
	GetBoard(ctx context.Context, teamID, boardID string) (*types.Board, error)
	ListBoards(ctx context.Context, teamID string) ([]types.Board, error)
	RenameBoard(ctx context.Context, teamID, boardID, name string) (*types.Board, error)
	MoveToTrash(ctx context.Context, teamID, boardID string) (*types.Board, error)
	ListTrash(ctx context.Context, teamID string) ([]types.TrashedBoard, error)
	RestoreBoard(ctx context.Context, teamID, boardID string) (*types.Board, error)
	DeleteBoardPermanently(ctx context.Context, teamID, boardID string) error
	ReadElements(ctx context.Context, teamID, boardID string) ([]types.Element, error)
	ReplaceElements(ctx context.Context, teamID, boardID string, elements []types.Element) (int, error)
	CreateTeam(ctx context.Context, teamID, name string) (*types.Team, error)
	AddMember(ctx context.Context, teamID, userID string, role types.Role) (*types.Member, error)
	RemoveMember(ctx context.Context, teamID, userID string) error
	ListMembers(ctx context.Context, teamID string) ([]types.Member, error)
	ListTeamsForUser(ctx context.Context, userID string) ([]types.Member, error)
}

type api struct {
	store  Store
	logger types.Logger
	newID  func() string
}

// NewRouter returns the API's routes. The caller's team comes from the
// X-Excalidraw-Team-Id header, defaulting to "default"; the user, where one
// is needed, from X-Excalidraw-User-Id.
func NewRouter(store Store, logger types.Logger) *mux.Router {
	a := &api{
		store:  store,
		logger: logger.WithField("component", "httpapi"),
		newID:  uuid.NewString,
	}

	r := mux.NewRouter()
	r.Use(a.logRequests)

	r.HandleFunc("/boards", a.listBoards).Methods(http.MethodGet)
	r.HandleFunc("/boards", a.createBoard).Methods(http.MethodPost)
	r.HandleFunc("/boards/trash", a.listTrash).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", a.getBoard).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", a.renameBoard).Methods(http.MethodPut)
	r.HandleFunc("/boards/{id}", a.trashBoard).Methods(http.MethodDelete)
	r.HandleFunc("/boards/{id}/restore", a.restoreBoard).Methods(http.MethodPost)
	r.HandleFunc("/boards/{id}/permanent", a.deleteBoard).Methods(http.MethodDelete)
	r.HandleFunc("/boards/{id}/elements", a.readElements).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}/elements", a.replaceElements).Methods(http.MethodPut)
	r.HandleFunc("/teams", a.listTeams).Methods(http.MethodGet)
	r.HandleFunc("/teams", a.createTeam).Methods(http.MethodPost)
	r.HandleFunc("/teams/members", a.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/teams/members", a.addMember).Methods(http.MethodPost)
	r.HandleFunc("/teams/members/{userId}", a.removeMember).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, types.Response{Message: "route not found", ErrorCode: types.KindNotFound.String()})
	})

	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (a *api) listBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := a.store.ListBoards(r.Context(), teamOf(r))
	a.reply(w, r, http.StatusOK, boards, err)
}

type boardBody struct {
	Name *string `json:"name"`
}

func (a *api) createBoard(w http.ResponseWriter, r *http.Request) {
	var body boardBody
	if !a.decode(w, r, &body) {
		return
	}

	board, err := a.store.CreateBoard(r.Context(), dynamodb.CreateBoardInput{
		TeamID:      teamOf(r),
		Name:        body.Name,
		OwnerUserID: userOf(r),
	})
	a.reply(w, r, http.StatusCreated, board, err)
}

func (a *api) listTrash(w http.ResponseWriter, r *http.Request) {
	trash, err := a.store.ListTrash(r.Context(), teamOf(r))
	a.reply(w, r, http.StatusOK, trash, err)
}

func (a *api) getBoard(w http.ResponseWriter, r *http.Request) {
	board, err := a.store.GetBoard(r.Context(), teamOf(r), mux.Vars(r)["id"])
	a.reply(w, r, http.StatusOK, board, err)
}

func (a *api) renameBoard(w http.ResponseWriter, r *http.Request) {
	var body boardBody
	if !a.decode(w, r, &body) {
		return
	}

	if body.Name == nil {
		a.fail(w, r, fmt.Errorf("%w: name is required", types.ErrInvalidInput))
		return
	}

	board, err := a.store.RenameBoard(r.Context(), teamOf(r), mux.Vars(r)["id"], *body.Name)
	a.reply(w, r, http.StatusOK, board, err)
}

func (a *api) trashBoard(w http.ResponseWriter, r *http.Request) {
	board, err := a.store.MoveToTrash(r.Context(), teamOf(r), mux.Vars(r)["id"])
	a.reply(w, r, http.StatusOK, board, err)
}

func (a *api) restoreBoard(w http.ResponseWriter, r *http.Request) {
	board, err := a.store.RestoreBoard(r.Context(), teamOf(r), mux.Vars(r)["id"])
	a.reply(w, r, http.StatusOK, board, err)
}

func (a *api) deleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["id"]
	err := a.store.DeleteBoardPermanently(r.Context(), teamOf(r), boardID)
	a.reply(w, r, http.StatusOK, map[string]string{"id": boardID}, err)
}

type elementsBody struct {
	Elements []types.Element `json:"elements"`
}

func (a *api) readElements(w http.ResponseWriter, r *http.Request) {
	elements, err := a.store.ReadElements(r.Context(), teamOf(r), mux.Vars(r)["id"])
	if elements == nil {
		elements = []types.Element{}
	}
	a.reply(w, r, http.StatusOK, elementsBody{Elements: elements}, err)
}

func (a *api) replaceElements(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Elements *[]types.Element `json:"elements"`
	}
	if !a.decode(w, r, &body) {
		return
	}

	if body.Elements == nil {
		a.fail(w, r, fmt.Errorf("%w: elements array is required", types.ErrInvalidInput))
		return
	}

	saved, err := a.store.ReplaceElements(r.Context(), teamOf(r), mux.Vars(r)["id"], *body.Elements)
	a.reply(w, r, http.StatusOK, map[string]int{"saved": saved}, err)
}

func (a *api) listTeams(w http.ResponseWriter, r *http.Request) {
	userID := userOf(r)
	if userID == "" {
		a.fail(w, r, fmt.Errorf("%w: %s header is required", types.ErrInvalidInput, UserHeader))
		return
	}

	teams, err := a.store.ListTeamsForUser(r.Context(), userID)
	a.reply(w, r, http.StatusOK, teams, err)
}

type teamBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// createTeam creates the team and, when the caller is known, makes them
// its owner.
func (a *api) createTeam(w http.ResponseWriter, r *http.Request) {
	var body teamBody
	if !a.decode(w, r, &body) {
		return
	}

	if body.ID == "" {
		body.ID = a.newID()
	}

	team, err := a.store.CreateTeam(r.Context(), body.ID, body.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if userID := userOf(r); userID != "" {
		if _, err := a.store.AddMember(r.Context(), team.ID, userID, types.RoleOwner); err != nil {
			a.fail(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, types.OK(team))
}

func (a *api) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := a.store.ListMembers(r.Context(), teamOf(r))
	a.reply(w, r, http.StatusOK, members, err)
}

type memberBody struct {
	UserID string     `json:"userId"`
	Role   types.Role `json:"role"`
}

func (a *api) addMember(w http.ResponseWriter, r *http.Request) {
	var body memberBody
	if !a.decode(w, r, &body) {
		return
	}

	if body.Role == "" {
		body.Role = types.RoleMember
	}

	member, err := a.store.AddMember(r.Context(), teamOf(r), body.UserID, body.Role)
	a.reply(w, r, http.StatusCreated, member, err)
}

func (a *api) removeMember(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	err := a.store.RemoveMember(r.Context(), teamOf(r), userID)
	a.reply(w, r, http.StatusOK, map[string]string{"userId": userID}, err)
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		a.fail(w, r, fmt.Errorf("%w: request body must be valid JSON", types.ErrInvalidInput))
		return false
	}

	return true
}

func (a *api) reply(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, status, types.OK(data))
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	if kind == types.KindOther || kind == types.KindTransient {
		a.logger.WithField("path", r.URL.Path).Errorf("Request failed: %v", err)
	}

	writeJSON(w, kind.HTTPStatus(), types.Failure(err))
}

func writeJSON(w http.ResponseWriter, status int, body types.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func teamOf(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(TeamHeader)); v != "" {
		return v
	}

	return DefaultTeamID
}

func userOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		a.logger.
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rec.status).
			WithField("elapsed", time.Since(started)).
			Debug("Request served")
	})
}
