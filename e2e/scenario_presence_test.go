package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testPresenceSuite struct {
	BaseHttpSuite
}

func TestPresenceSuite(t *testing.T) {
	suite.Run(t, &testPresenceSuite{})
}

type participantBody struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type messageBody struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

// Names are unique per run so the suite can target a long-lived server.
func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func (s *testPresenceSuite) TestChatFlow() {
	alice := uniqueName("alice")
	bob := uniqueName("bob")
	secret := "secret " + uuid.NewString()

	// --- STEP 1: REGISTRATION ---
	s.Run("Step 1: Register two participants and reject a duplicate", func() {
		s.Step("Register alice and bob", func(ctx context.Context) {
			for _, name := range []string{alice, bob} {
				resp := s.Do(ctx, s.T(), http.MethodPost, "/participants", "", map[string]string{"name": name})
				s.Require().Equal(http.StatusCreated, resp.Status)
			}
			resp := s.Do(ctx, s.T(), http.MethodPost, "/participants", "", map[string]string{"name": alice})
			s.Require().Equal(http.StatusConflict, resp.Status)
		})
	})

	// --- STEP 2: PRESENCE LISTING ---
	s.Run("Step 2: Both participants are listed", func() {
		s.Step("List participants", func(ctx context.Context) {
			resp := s.Do(ctx, s.T(), http.MethodGet, "/participants", "", nil)
			s.Require().Equal(http.StatusOK, resp.Status)
			var participants []participantBody
			resp.Decode(&s.BaseHttpSuite, &participants)
			names := map[string]bool{}
			for _, p := range participants {
				names[p.Name] = true
			}
			s.Require().True(names[alice])
			s.Require().True(names[bob])
		})
	})

	// --- STEP 3: MESSAGING ---
	s.Run("Step 3: A private message reaches only its recipient", func() {
		s.Step("Alice whispers to bob", func(ctx context.Context) {
			resp := s.Do(ctx, s.T(), http.MethodPost, "/messages", alice, map[string]string{
				"to": bob, "text": secret, "type": "private_message",
			})
			s.Require().Equal(http.StatusCreated, resp.Status)
		})
		s.Step("Bob and alice see it, a stranger does not", func(ctx context.Context) {
			s.Require().True(s.sees(ctx, bob, secret))
			s.Require().True(s.sees(ctx, alice, secret))
			s.Require().False(s.sees(ctx, uniqueName("stranger"), secret))
		})
	})

	// --- STEP 4: UNREGISTERED SENDER ---
	s.Run("Step 4: An unregistered sender is refused", func() {
		s.Step("Ghost tries to talk", func(ctx context.Context) {
			resp := s.Do(ctx, s.T(), http.MethodPost, "/messages", uniqueName("ghost"), map[string]string{
				"to": "Todos", "text": "boo", "type": "message",
			})
			s.Require().Equal(http.StatusUnprocessableEntity, resp.Status)
		})
	})

	// --- STEP 5: EVICTION ---
	s.Run("Step 5: A silent participant is evicted while a chatty one stays", func() {
		threshold, err := time.ParseDuration(s.Config.StaleThreshold)
		s.Require().NoError(err)
		interval, err := time.ParseDuration(s.Config.SweepInterval)
		s.Require().NoError(err)

		s.Step("Keep alice alive until bob is gone", func(ctx context.Context) {
			deadline := time.Now().Add(threshold + 2*interval + 5*time.Second)
			for time.Now().Before(deadline) {
				resp := s.Do(ctx, s.T(), http.MethodPost, "/status", alice, nil)
				s.Require().Equal(http.StatusOK, resp.Status)
				if !s.listed(ctx, bob) {
					break
				}
				time.Sleep(threshold / 4)
			}
			s.Require().False(s.listed(ctx, bob), "bob should have been evicted")
			s.Require().True(s.listed(ctx, alice), "alice kept sending heartbeats")
		})
		s.Step("The departure was announced", func(ctx context.Context) {
			resp := s.Do(ctx, s.T(), http.MethodGet, "/messages", alice, nil)
			s.Require().Equal(http.StatusOK, resp.Status)
			var messages []messageBody
			resp.Decode(&s.BaseHttpSuite, &messages)
			left := 0
			for _, m := range messages {
				if m.From == bob && m.Type == "status" && m.Text == "left the room" {
					left++
				}
			}
			s.Require().Equal(1, left)
		})
		s.Step("Heartbeat after eviction is refused", func(ctx context.Context) {
			resp := s.Do(ctx, s.T(), http.MethodPost, "/status", bob, nil)
			s.Require().Equal(http.StatusNotFound, resp.Status)
		})
	})
}

func (s *testPresenceSuite) sees(ctx context.Context, viewer, text string) bool {
	resp := s.Do(ctx, s.T(), http.MethodGet, "/messages", viewer, nil)
	s.Require().Equal(http.StatusOK, resp.Status)
	var messages []messageBody
	resp.Decode(&s.BaseHttpSuite, &messages)
	for _, m := range messages {
		if m.Text == text {
			return true
		}
	}
	return false
}

func (s *testPresenceSuite) listed(ctx context.Context, name string) bool {
	resp := s.Do(ctx, s.T(), http.MethodGet, "/participants", "", nil)
	s.Require().Equal(http.StatusOK, resp.Status)
	var participants []participantBody
	resp.Decode(&s.BaseHttpSuite, &participants)
	for _, p := range participants {
		if p.Name == name {
			return true
		}
	}
	return false
}
