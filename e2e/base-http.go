package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseHttpSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHttpSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_SERVER_ADDR not set, skipping end-to-end suite")
	}
	if !strings.HasPrefix(s.Config.ServerAddr, "http") {
		s.Config.ServerAddr = "http://" + s.Config.ServerAddr
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Response is what a step sees of the server answer.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the body into v and fails the test when it is not valid JSON.
func (r Response) Decode(s *BaseHttpSuite, v any) {
	s.Require().NoError(json.Unmarshal(r.Body, v), "body: %s", r.Body)
}

// Step prints a colorized header then runs fn with a bounded context.
func (s *BaseHttpSuite) Step(name string, fn func(ctx context.Context)) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(ctx)
}

// Do sends one request as user (no User header when empty) and logs the exchange.
func (s *BaseHttpSuite) Do(ctx context.Context, t *testing.T, method, path, user string, body any) Response {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.Config.ServerAddr+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("User", user)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(data))
	}
	t.Log(logBuilder.String())

	return Response{Status: resp.StatusCode, Body: data}
}
