package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const broadcast = "Todos"

type Participant struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type Message struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Code, e.Message)
}

// ChatClient speaks the room's HTTP API on behalf of one user.
type ChatClient struct {
	baseURL string
	user    string
	http    *http.Client
}

func NewChatClient(baseURL, user string, httpClient *http.Client) *ChatClient {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "http://" + baseURL
	}
	return &ChatClient{baseURL: strings.TrimSuffix(baseURL, "/"), user: user, http: httpClient}
}

func (c *ChatClient) Register(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/participants", map[string]string{"name": c.user}, nil)
}

func (c *ChatClient) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/status", nil, nil)
}

func (c *ChatClient) Send(ctx context.Context, to, text, kind string) error {
	return c.do(ctx, http.MethodPost, "/messages", map[string]string{"to": to, "text": text, "type": kind}, nil)
}

func (c *ChatClient) Messages(ctx context.Context) ([]Message, error) {
	var messages []Message
	err := c.do(ctx, http.MethodGet, "/messages", nil, &messages)
	return messages, err
}

func (c *ChatClient) Participants(ctx context.Context) ([]Participant, error) {
	var participants []Participant
	err := c.do(ctx, http.MethodGet, "/participants", nil, &participants)
	return participants, err
}

func (c *ChatClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User", c.user)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var problem struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &problem) != nil || problem.Error == "" {
			problem.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Code: resp.StatusCode, Message: problem.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
