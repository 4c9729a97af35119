package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

var testJWT = middleware.JWTConfig{Secret: "mcp-secret", Issuer: "vietstart-test", ExpiresIn: time.Hour}

type stubRanker struct {
	err       error
	lastLimit int
}

func (r *stubRanker) Rank(_ context.Context, startupID string, limit int) ([]domain.MatchResult, error) {
	r.lastLimit = limit
	if r.err != nil {
		return nil, r.err
	}
	return []domain.MatchResult{{CandidateID: "u1", Score: 72.5}}, nil
}

func (r *stubRanker) RankGrouped(_ context.Context, startupID string, limit int) (*domain.GroupedRankings, error) {
	if r.err != nil {
		return nil, r.err
	}
	one := []domain.MatchResult{{CandidateID: "u1", Score: 72.5}}
	return &domain.GroupedRankings{BySkills: one, ByRoles: []domain.MatchResult{}, ByCategory: []domain.MatchResult{}, Overall: one}, nil
}

type stubLister struct {
	mu    sync.Mutex
	actor string
	view  domain.EngagementView
}

func (l *stubLister) List(_ context.Context, actorID string, view domain.EngagementView, _ string) ([]domain.Engagement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actor, l.view = actorID, view
	if _, err := domain.ParseEngagementView(string(view)); err != nil {
		return nil, errors.Join(port.ErrInvalidState, err)
	}
	return []domain.Engagement{{ID: "e1", CandidateID: actorID, Status: domain.StatusDealing}}, nil
}

type countingAudit struct {
	mu    sync.Mutex
	calls int
	users []string
}

func (a *countingAudit) WriteAudit(userID, action, _, _, _, _, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if action == domain.AuditActionMCPCall {
		a.calls++
		a.users = append(a.users, userID)
	}
	return nil
}

// bearerTransport adds a fixed Authorization header to every request.
type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

// connect opens a streamable HTTP session authenticated as userID.
func connect(srv *httptest.Server, userID string) *mcp.ClientSession {
	token, err := middleware.GenerateJWT(&domain.UserContext{UserID: userID}, testJWT)
	So(err, ShouldBeNil)

	transport := &mcp.StreamableClientTransport{
		Endpoint:   srv.URL,
		HTTPClient: &http.Client{Transport: bearerTransport{token: token}},
		MaxRetries: -1,
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(context.Background(), transport, nil)
	So(err, ShouldBeNil)
	return session
}

func call(session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	So(err, ShouldBeNil)
	So(result.Content, ShouldNotBeEmpty)
	tc, ok := result.Content[0].(*mcp.TextContent)
	So(ok, ShouldBeTrue)
	return tc.Text, result.IsError
}

func TestTools(t *testing.T) {
	Convey("Given an authenticated MCP session", t, func() {
		ranker, lister, audit := &stubRanker{}, &stubLister{}, &countingAudit{}
		srv := httptest.NewServer(NewServer(ranker, lister, audit, testJWT, "0", "test").Handler())
		defer srv.Close()
		session := connect(srv, "u1")
		defer session.Close()

		Convey("All tools are listed", func() {
			res, err := session.ListTools(context.Background(), nil)
			So(err, ShouldBeNil)
			names := []string{}
			for _, tool := range res.Tools {
				names = append(names, tool.Name)
			}
			So(names, ShouldContain, "rank_candidates")
			So(names, ShouldContain, "rank_candidates_grouped")
			So(names, ShouldContain, "list_engagements")
		})

		Convey("rank_candidates returns the ranking as JSON", func() {
			text, isErr := call(session, "rank_candidates", map[string]any{"startup_id": "s1", "limit": 3})
			So(isErr, ShouldBeFalse)
			So(ranker.lastLimit, ShouldEqual, 3)

			var results []domain.MatchResult
			So(json.Unmarshal([]byte(text), &results), ShouldBeNil)
			So(results, ShouldHaveLength, 1)
			So(results[0].Score, ShouldEqual, 72.5)
			So(audit.calls, ShouldEqual, 1)
			So(audit.users, ShouldResemble, []string{"u1"})
		})

		Convey("rank_candidates_grouped returns four lists", func() {
			text, isErr := call(session, "rank_candidates_grouped", map[string]any{"startup_id": "s1"})
			So(isErr, ShouldBeFalse)
			So(text, ShouldContainSubstring, `"by_skills"`)
			So(text, ShouldContainSubstring, `"overall"`)
		})

		Convey("A blank startup id is a tool error", func() {
			text, isErr := call(session, "rank_candidates", map[string]any{"startup_id": ""})
			So(isErr, ShouldBeTrue)
			So(text, ShouldContainSubstring, "startup_id")
		})

		Convey("Ranking failures surface as tool errors", func() {
			ranker.err = port.ErrStartupNotFound
			text, isErr := call(session, "rank_candidates", map[string]any{"startup_id": "nope"})
			So(isErr, ShouldBeTrue)
			So(text, ShouldContainSubstring, "startup not found")
		})

		Convey("list_engagements acts as the token's user and defaults the view", func() {
			text, isErr := call(session, "list_engagements", map[string]any{})
			So(isErr, ShouldBeFalse)
			So(lister.actor, ShouldEqual, "u1")
			So(lister.view, ShouldEqual, domain.ViewReceived)
			So(text, ShouldContainSubstring, `"status": "Dealing"`)

			_, isErr = call(session, "list_engagements", map[string]any{"view": "everything"})
			So(isErr, ShouldBeTrue)
		})
	})
}

func TestAuthentication(t *testing.T) {
	Convey("Given the MCP HTTP handler", t, func() {
		lister := &stubLister{}
		srv := httptest.NewServer(NewServer(&stubRanker{}, lister, nil, testJWT, "0", "test").Handler())
		defer srv.Close()

		initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"curl","version":"1"}}}`
		post := func(token string) *http.Response {
			req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(initialize))
			So(err, ShouldBeNil)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()
			return resp
		}

		Convey("Requests without a token are rejected", func() {
			So(post("").StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Tokens signed with another secret are rejected", func() {
			forged, err := middleware.GenerateJWT(&domain.UserContext{UserID: "u1"}, middleware.JWTConfig{Secret: "other", Issuer: testJWT.Issuer, ExpiresIn: time.Hour})
			So(err, ShouldBeNil)
			So(post(forged).StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("An anonymous client cannot connect", func() {
			client := mcp.NewClient(&mcp.Implementation{Name: "anonymous"}, nil)
			_, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: srv.URL, MaxRetries: -1}, nil)
			So(err, ShouldNotBeNil)
			So(lister.actor, ShouldBeEmpty)
		})
	})

	Convey("Tool calls without token info are refused", t, func() {
		lister := &stubLister{}
		s := NewServer(&stubRanker{}, lister, nil, testJWT, "0", "test")
		ctx := context.Background()
		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		_, err := s.MCPServer().Connect(ctx, serverTransport, nil)
		So(err, ShouldBeNil)
		session, err := mcp.NewClient(&mcp.Implementation{Name: "in-memory"}, nil).Connect(ctx, clientTransport, nil)
		So(err, ShouldBeNil)
		defer session.Close()

		text, isErr := call(session, "list_engagements", map[string]any{})
		So(isErr, ShouldBeTrue)
		So(text, ShouldContainSubstring, "bearer token")
		So(lister.actor, ShouldBeEmpty)
	})
}
