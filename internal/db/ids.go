package db

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	boardIDPrefix   = "bd-"
	columnIDPrefix  = "cl-"
	taskIDPrefix    = "tk-"
	subtaskIDPrefix = "st-"
	labelIDPrefix   = "lb-"
	actionIDPrefix  = "ac-"
)

// generateID returns prefix + n random hex bytes.
func generateID(prefix string, n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(bytes), nil
}

func generateBoardID() (string, error)   { return generateID(boardIDPrefix, 4) }
func generateColumnID() (string, error)  { return generateID(columnIDPrefix, 4) }
func generateTaskID() (string, error)    { return generateID(taskIDPrefix, 4) }
func generateSubtaskID() (string, error) { return generateID(subtaskIDPrefix, 4) }
func generateLabelID() (string, error)   { return generateID(labelIDPrefix, 4) }
func generateActionID() (string, error)  { return generateID(actionIDPrefix, 8) }
