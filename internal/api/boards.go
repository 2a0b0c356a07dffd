package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/marcus/kanban/internal/serverdb"
)

// Board ids become directory names on disk, so the charset is strict.
var boardIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CreateBoardRequest is the JSON body for POST /v1/boards.
// ID is optional; clients send their local board id so both sides
// agree on the name of the event log.
type CreateBoardRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// BoardResponse is the JSON representation of a hosted board.
type BoardResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// handleCreateBoard handles POST /v1/boards.
func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	if req.Title == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "title is required")
		return
	}
	if req.ID != "" && !boardIDPattern.MatchString(req.ID) {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "board id must be 1-64 chars of [A-Za-z0-9_-]")
		return
	}

	if req.ID != "" {
		existing, err := s.store.GetBoard(req.ID, true)
		if err != nil {
			logFor(r.Context()).Error("check board", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to check board")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, ErrCodeBadRequest, "board id already registered")
			return
		}
	}

	board, err := s.store.CreateBoard(req.ID, req.Title, user.UserID)
	if err != nil {
		logFor(r.Context()).Error("create board", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create board")
		return
	}

	// Initialize the event log up front so the first push cannot race
	// board registration.
	if _, err := s.pool.Create(board.ID); err != nil {
		logFor(r.Context()).Error("create board db", "board", board.ID, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to initialize board database")
		return
	}

	writeJSON(w, http.StatusCreated, boardToResponse(board))
}

// handleListBoards handles GET /v1/boards.
func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	boards, err := s.store.ListBoardsForUser(user.UserID)
	if err != nil {
		logFor(r.Context()).Error("list boards", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list boards")
		return
	}

	resp := make([]BoardResponse, 0, len(boards))
	for _, b := range boards {
		resp = append(resp, boardToResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetBoard handles GET /v1/boards/{id}.
func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	board, err := s.store.GetBoard(boardID, false)
	if err != nil {
		logFor(r.Context()).Error("get board", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to get board")
		return
	}
	if board == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "board not found")
		return
	}

	writeJSON(w, http.StatusOK, boardToResponse(board))
}

// UpdateBoardRequest is the JSON body for PATCH /v1/boards/{id}.
type UpdateBoardRequest struct {
	Title *string `json:"title"`
}

// handleUpdateBoard handles PATCH /v1/boards/{id}.
func (s *Server) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	var req UpdateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	if req.Title == nil || *req.Title == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "title cannot be empty")
		return
	}

	if _, err := s.store.RenameBoard(boardID, *req.Title); err != nil {
		logFor(r.Context()).Error("rename board", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to rename board")
		return
	}

	board, err := s.store.GetBoard(boardID, false)
	if err != nil || board == nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to reload board")
		return
	}

	writeJSON(w, http.StatusOK, boardToResponse(board))
}

// handleDeleteBoard handles DELETE /v1/boards/{id}.
// The registry row is soft-deleted; the event log stays on disk.
func (s *Server) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	if err := s.store.SoftDeleteBoard(boardID); err != nil {
		logFor(r.Context()).Error("delete board", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete board")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func boardToResponse(b *serverdb.Board) BoardResponse {
	resp := BoardResponse{
		ID:        b.ID,
		Title:     b.Title,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
	if b.DeletedAt != nil {
		s := b.DeletedAt.Format(time.RFC3339)
		resp.DeletedAt = &s
	}
	return resp
}
