package tools

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// UUIDGenerator returns a random v4 UUID.
type UUIDGenerator struct {
	newRandom func() (uuid.UUID, error)
}

func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{newRandom: uuid.NewRandom} }

func (g *UUIDGenerator) Name() string { return "uuid_generator" }
func (g *UUIDGenerator) Description() string {
	return "Generates a random unique identifier (UUID v4)."
}
func (g *UUIDGenerator) ReturnType() store.ParamType   { return store.ParamObject }
func (g *UUIDGenerator) Parameters() []store.ParamSpec { return nil }

func (g *UUIDGenerator) Execute(context.Context, map[string]any) (any, error) {
	id, err := g.newRandom()
	if err != nil {
		return map[string]any{"uuid": fallbackToken()}, nil
	}
	return map[string]any{"uuid": id.String()}, nil
}

// fallbackToken is used when the system random source is unavailable.
func fallbackToken() string {
	return fmt.Sprintf("%x-%016x", time.Now().UnixNano(), rand.Uint64())
}
