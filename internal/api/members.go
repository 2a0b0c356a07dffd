package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// AddMemberRequest is the JSON body for POST /v1/boards/{id}/members.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// MemberResponse is the JSON representation of a membership.
type MemberResponse struct {
	BoardID   string `json:"board_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
	CreatedAt string `json:"created_at"`
}

// UpdateMemberRequest is the JSON body for PATCH /v1/boards/{id}/members/{userID}.
type UpdateMemberRequest struct {
	Role string `json:"role"`
}

// handleAddMember handles POST /v1/boards/{id}/members.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")
	inviter := getUserFromContext(r.Context())

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	// Resolve email to user ID if email provided without user_id
	if req.Email != "" && req.UserID == "" {
		user, err := s.store.GetUserByEmail(req.Email)
		if err != nil {
			logFor(r.Context()).Error("lookup user by email", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to look up user")
			return
		}
		if user == nil {
			user, err = s.store.CreateUser(req.Email)
			if err != nil {
				logFor(r.Context()).Error("create user by email", "err", err)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create user")
				return
			}
		}
		req.UserID = user.ID
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "user_id or email is required")
		return
	}
	if req.Role == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "role is required")
		return
	}

	m, err := s.store.AddMember(boardID, req.UserID, req.Role, inviter.UserID)
	if err != nil {
		logFor(r.Context()).Error("add member", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to add member")
		return
	}

	writeJSON(w, http.StatusCreated, MemberResponse{
		BoardID:   m.BoardID,
		UserID:    m.UserID,
		Role:      m.Role,
		InvitedBy: m.InvitedBy,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	})
}

// handleListMembers handles GET /v1/boards/{id}/members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	members, err := s.store.ListMembers(boardID)
	if err != nil {
		logFor(r.Context()).Error("list members", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list members")
		return
	}

	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, MemberResponse{
			BoardID:   m.BoardID,
			UserID:    m.UserID,
			Role:      m.Role,
			InvitedBy: m.InvitedBy,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateMember handles PATCH /v1/boards/{id}/members/{userID}.
func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")
	targetUserID := r.PathValue("userID")

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	if req.Role == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "role is required")
		return
	}

	if err := s.store.UpdateMemberRole(boardID, targetUserID, req.Role); err != nil {
		logFor(r.Context()).Error("update member", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to update member")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleRemoveMember handles DELETE /v1/boards/{id}/members/{userID}.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")
	targetUserID := r.PathValue("userID")

	if err := s.store.RemoveMember(boardID, targetUserID); err != nil {
		logFor(r.Context()).Error("remove member", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to remove member")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
