package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
	"github.com/rs/zerolog"
)

var now = time.Now // For mocking time.Now() in tests

// PublishStatus is the outcome of a publish attempt.
type PublishStatus int

const (
	// PublishAccepted means the write was issued.
	PublishAccepted PublishStatus = iota
	// PublishUnauthorized means no user is signed in and nothing was written.
	PublishUnauthorized
)

func (s PublishStatus) String() string {
	switch s {
	case PublishAccepted:
		return "accepted"
	case PublishUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// PublishResult is returned by Publisher.Publish.
type PublishResult struct {
	Status PublishStatus
	// Prompt is the message to show the user when Status is PublishUnauthorized.
	Prompt string
	// Record is the record being written when Status is PublishAccepted.
	Record models.ShuttleRecord
	// Ack receives the write error (nil on success) once, then closes. Nil when nothing is written.
	// Callers may ignore it.
	Ack <-chan error
}

// Publisher writes new shuttle coordinates on behalf of signed-in users.
type Publisher struct {
	store        recordstore.Store
	shuttleID    string
	writeTimeout time.Duration
	logger       zerolog.Logger
	wg           sync.WaitGroup
}

// NewPublisher creates a Publisher writing to the record of shuttleID.
func NewPublisher(store recordstore.Store, shuttleID string, writeTimeout time.Duration, logger zerolog.Logger) *Publisher {
	return &Publisher{
		store:        store,
		shuttleID:    shuttleID,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// authorize is the only gate of the publish action: a user must be signed in.
func authorize(session models.Session) (models.User, bool) {
	if session == nil {
		return models.User{}, false
	}
	return session.CurrentUser()
}

// Publish replaces the shuttle record with coordinate and the current time. The write runs in the
// background; its failure is logged and reported on the result's Ack channel.
func (p *Publisher) Publish(session models.Session, coordinate models.Coordinate) PublishResult {
	user, ok := authorize(session)
	if !ok {
		p.logger.Info().Str("shuttle_id", p.shuttleID).Msg("Refusing location update without a signed-in user")
		return PublishResult{Status: PublishUnauthorized, Prompt: constants.PromptSignInRequired}
	}

	record := models.ShuttleRecord{Coordinate: coordinate, UpdatedAt: now()}
	ack := make(chan error, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(ack)

		ctx := context.Background()
		if p.writeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
			defer cancel()
		}

		err := p.store.Write(ctx, p.shuttleID, record)
		if err != nil {
			p.logger.Error().
				Err(err).
				Str("shuttle_id", p.shuttleID).
				Str("user_id", user.ID).
				Msg("Error updating location")
		} else {
			p.logger.Info().
				Str("shuttle_id", p.shuttleID).
				Str("user_id", user.ID).
				Str("coordinate", coordinate.String()).
				Msg("Location updated successfully")
		}
		ack <- err
	}()

	return PublishResult{Status: PublishAccepted, Record: record, Ack: ack}
}

// Wait blocks until every issued write has finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
