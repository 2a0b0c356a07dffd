package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/marcus/kanban/internal/realtime"
)

// wsTokenTTL bounds how long a minted websocket token stays usable.
// Clients mint a fresh one per connection attempt.
const wsTokenTTL = 60 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect cross-origin from the board UI; board access
	// is enforced by the signed token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClaims are the JWT claims for a websocket connect token.
type wsClaims struct {
	BoardID  string `json:"board_id"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// WSTokenResponse is the JSON response for POST /v1/boards/{id}/ws/token.
type WSTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// mintWSToken signs a short-lived token binding a user's device to a board.
func (s *Server) mintWSToken(boardID, deviceID, userID string) (string, error) {
	now := time.Now().UTC()
	claims := wsClaims{
		BoardID:  boardID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(wsTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.wsSecret)
}

// verifyWSToken parses and validates a websocket connect token for a board.
func (s *Server) verifyWSToken(tokenStr, boardID string) (*wsClaims, error) {
	claims := &wsClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.wsSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.BoardID != boardID {
		return nil, fmt.Errorf("token is for a different board")
	}
	if claims.DeviceID == "" {
		return nil, fmt.Errorf("token missing device id")
	}
	return claims, nil
}

// handleWSToken handles POST /v1/boards/{id}/ws/token.
// Websockets cannot carry an Authorization header from browsers, so
// clients trade their API key for a short-lived signed token here.
func (s *Server) handleWSToken(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")
	user := getUserFromContext(r.Context())

	var req struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "device_id is required")
		return
	}

	token, err := s.mintWSToken(boardID, req.DeviceID, user.UserID)
	if err != nil {
		logFor(r.Context()).Error("mint ws token", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to mint token")
		return
	}

	writeJSON(w, http.StatusOK, WSTokenResponse{
		Token:     token,
		ExpiresIn: int(wsTokenTTL.Seconds()),
	})
}

// handleWS handles GET /v1/boards/{id}/ws.
// The token query parameter must be a connect token minted for this board.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")

	claims, err := s.verifyWSToken(r.URL.Query().Get("token"), boardID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logFor(r.Context()).Warn("websocket upgrade", "err", err)
		return
	}

	client := realtime.NewClient(s.hub, conn, boardID, claims.DeviceID)
	s.hub.Register(client)

	logFor(r.Context()).Info("ws connected", "board", boardID, "device", claims.DeviceID)

	go client.WritePump()
	go client.ReadPump()
}
