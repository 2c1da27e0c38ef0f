package polls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/remote/remotetest"
	"github.com/faninteract/backend/pkg/utils"
)

func livePoll(status string) remote.Row {
	return remote.Row{
		"id": "p1", "host_id": "h1", "question": "Best snack?", "status": status,
		"options": []any{
			map[string]any{"id": "a", "text": "Nachos"},
			map[string]any{"id": "b", "text": "Pretzel"},
		},
	}
}

func TestVoteRecordsFingerprintOnly(t *testing.T) {
	fake := remotetest.New()
	fake.Put("polls", livePoll("live"))
	svc := NewService(fake, nil)

	vote, err := svc.Vote(context.Background(), "p1", "device-1", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", vote["option_id"])
	assert.NotContains(t, vote, "voter_hash")

	stored := fake.Row("poll_votes", vote.ID())
	assert.Equal(t, utils.VoterHash("p1", "device-1"), stored["voter_hash"])
}

func TestVoteRejections(t *testing.T) {
	fake := remotetest.New()
	fake.Put("polls", livePoll("live"))
	fake.Put("polls", remote.Row{"id": "p2", "status": "closed"})
	svc := NewService(fake, nil)
	ctx := context.Background()

	_, err := svc.Vote(ctx, "p1", "device-1", "a")
	require.NoError(t, err)

	_, err = svc.Vote(ctx, "p1", "device-1", "b")
	assert.ErrorIs(t, err, ErrDuplicateVote)

	_, err = svc.Vote(ctx, "p1", "device-2", "z")
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = svc.Vote(ctx, "p1", " ", "a")
	assert.ErrorIs(t, err, ErrMissingVoter)

	_, err = svc.Vote(ctx, "p2", "device-1", "a")
	assert.ErrorIs(t, err, ErrPollNotLive)

	_, err = svc.Vote(ctx, "nope", "device-1", "a")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestUniqueViolationIsDuplicate(t *testing.T) {
	fake := remotetest.New()
	fake.Put("polls", livePoll("live"))
	fake.SetError("insert", remote.ErrConflict)
	svc := NewService(fake, nil)

	_, err := svc.Vote(context.Background(), "p1", "device-1", "a")
	assert.ErrorIs(t, err, ErrDuplicateVote)
}

func TestConcurrentVotersAllCount(t *testing.T) {
	fake := remotetest.New()
	fake.Put("polls", livePoll("live"))
	svc := NewService(fake, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opt := "a"
			if i%4 == 0 {
				opt = "b"
			}
			_, err := svc.Vote(context.Background(), "p1", "device-"+string(rune('A'+i)), opt)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	res, err := svc.Results(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 20, res.TotalVotes)
	assert.Equal(t, 15, res.Options[0].Votes)
	assert.Equal(t, 5, res.Options[1].Votes)
	require.NotNil(t, res.Winner)
	assert.Equal(t, "Nachos", res.Winner.Text)
}

func TestResultsWithoutVotesHasNoWinner(t *testing.T) {
	fake := remotetest.New()
	fake.Put("polls", livePoll("closed"))
	res, err := NewService(fake, nil).Results(context.Background(), "p1")
	require.NoError(t, err)
	assert.Zero(t, res.TotalVotes)
	assert.Nil(t, res.Winner)
	assert.Len(t, res.Options, 2)
}

func TestHandlerStatusCodes(t *testing.T) {
	fake := remotetest.New()
	fake.Put("polls", livePoll("live"))
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewService(fake, nil), nil).RegisterPublic(r.Group("/api/v1"))

	post := func(path, body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusCreated, post("/api/v1/polls/p1/votes", `{"option_id":"a","voter_token":"t1"}`))
	assert.Equal(t, http.StatusConflict, post("/api/v1/polls/p1/votes", `{"option_id":"b","voter_token":"t1"}`))
	assert.Equal(t, http.StatusBadRequest, post("/api/v1/polls/p1/votes", `{"option_id":"z","voter_token":"t2"}`))
	assert.Equal(t, http.StatusBadRequest, post("/api/v1/polls/p1/votes", `{"option_id":"a"}`))
	assert.Equal(t, http.StatusNotFound, post("/api/v1/polls/nope/votes", `{"option_id":"a","voter_token":"t2"}`))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/polls/p1/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data Results `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.TotalVotes)
	assert.Equal(t, "a", body.Data.Winner.ID)
}
