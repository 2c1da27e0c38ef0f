// Package polls records guest votes and reports live results.
package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/pkg/utils"
)

var (
	// ErrDuplicateVote is returned when the voter already voted on the poll.
	ErrDuplicateVote = errors.New("already voted")
	// ErrPollNotLive is returned when the poll is not accepting votes.
	ErrPollNotLive = errors.New("poll is not live")
	// ErrUnknownOption is returned for an option id the poll does not have.
	ErrUnknownOption = errors.New("unknown option")
	// ErrMissingVoter is returned when no voter token was supplied.
	ErrMissingVoter = errors.New("voter token required")
)

// Results is the public tally of a poll.
type Results struct {
	ID         string               `json:"id"`
	Question   string               `json:"question"`
	Status     models.Status        `json:"status"`
	Options    []models.OptionTally `json:"options"`
	TotalVotes int                  `json:"total_votes"`
	Winner     *models.OptionTally  `json:"winner,omitempty"`
}

// Service records votes.
type Service struct {
	remote remote.Service
	logger *zap.Logger
}

// NewService creates a polls service.
func NewService(svc remote.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{remote: svc, logger: logger}
}

// Vote records one vote per voter per poll. Only the voter fingerprint is
// stored.
func (s *Service) Vote(ctx context.Context, pollID, voterToken, optionID string) (remote.Row, error) {
	voterToken = strings.TrimSpace(voterToken)
	if voterToken == "" {
		return nil, ErrMissingVoter
	}
	row, err := s.remote.Get(ctx, entity.Poll.Table, pollID)
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	p := models.EntityFromRow(row)
	if p.Status != models.StatusLive {
		return nil, ErrPollNotLive
	}
	if !hasOption(p.Options, optionID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
	}

	hash := utils.VoterHash(pollID, voterToken)
	existing, err := s.remote.List(ctx, entity.Poll.ItemTable, remote.Query{
		Where: []remote.Filter{remote.Eq("poll_id", pollID), remote.Eq("voter_hash", hash)},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("check vote: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrDuplicateVote
	}

	vote, err := s.remote.Insert(ctx, entity.Poll.ItemTable, remote.Row{
		"poll_id":    pollID,
		"option_id":  optionID,
		"voter_hash": hash,
	})
	if errors.Is(err, remote.ErrConflict) {
		return nil, ErrDuplicateVote
	}
	if err != nil {
		return nil, fmt.Errorf("insert vote: %w", err)
	}
	s.logger.Debug("vote recorded", zap.String("entity_id", pollID), zap.String("option_id", optionID))
	delete(vote, "voter_hash")
	return vote, nil
}

// Results tallies the poll's votes. The winner is the option with the most
// votes, first on ties.
func (s *Service) Results(ctx context.Context, pollID string) (Results, error) {
	row, err := s.remote.Get(ctx, entity.Poll.Table, pollID)
	if err != nil {
		return Results{}, fmt.Errorf("get poll: %w", err)
	}
	rows, err := s.remote.List(ctx, entity.Poll.ItemTable, remote.Query{
		Where: []remote.Filter{remote.Eq("poll_id", pollID)},
	})
	if err != nil {
		return Results{}, fmt.Errorf("list votes: %w", err)
	}
	votes := make([]models.Item, 0, len(rows))
	for _, r := range rows {
		votes = append(votes, models.ItemFromRow(r, entity.Poll.ParentColumn))
	}

	p := models.EntityFromRow(row)
	res := Results{ID: p.ID, Question: p.Question, Status: p.Status, Options: models.Tally(p.Options, votes)}
	for _, t := range res.Options {
		res.TotalVotes += t.Votes
	}
	if i := models.Winner(res.Options); i >= 0 {
		w := res.Options[i]
		res.Winner = &w
	}
	return res, nil
}

func hasOption(opts []models.PollOption, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
