package http

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/agentloop/internal/store"
	"github.com/nextlevelbuilder/agentloop/pkg/protocol"
)

// maxInputChars bounds a single run input.
const maxInputChars = 64 * 1024

func validateRunRequest(req *protocol.RunRequest) error {
	if strings.TrimSpace(req.Input) == "" {
		return fmt.Errorf("input is required")
	}
	if len(req.Input) > maxInputChars {
		return fmt.Errorf("input too long: %d bytes (max %d)", len(req.Input), maxInputChars)
	}
	return nil
}

func validateInvokeRequest(req *protocol.InvokeRequest) error {
	if req.Tool == "" {
		return fmt.Errorf("tool is required")
	}
	if err := store.ValidateToolName(req.Tool); err != nil {
		return err
	}
	if len(req.Agent) > store.MaxNameLength {
		return fmt.Errorf("agent name too long")
	}
	return nil
}

func validateIngestRequest(req *protocol.IngestRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}
