package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldrelay/missionctl/internal/types"
)

func TestParseToken(t *testing.T) {
	cases := []struct {
		tok  string
		want types.Command
	}{
		{"FW10", types.Command{Kind: types.CmdMoveForward, Value: 10}},
		{"BW5", types.Command{Kind: types.CmdMoveBackward, Value: 5}},
		{"FL90", types.Command{Kind: types.CmdTurnLeft, Value: 90}},
		{"FR90", types.Command{Kind: types.CmdTurnRight, Value: 90}},
		{"SP3", types.Command{Kind: types.CmdSnapshot, Value: 3}},
	}
	for _, c := range cases {
		got, err := parseToken(c.tok)
		if err != nil {
			t.Errorf("parseToken(%q) error: %v", c.tok, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseToken(%q) = %+v, want %+v", c.tok, got, c.want)
		}
	}
}

func TestParseToken_RejectsUnknownPrefix(t *testing.T) {
	if _, err := parseToken("XY10"); err == nil {
		t.Error("expected error for unknown prefix")
	}
	if _, err := parseToken("F"); err == nil {
		t.Error("expected error for too-short token")
	}
}

func TestPlan_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/path" {
			t.Errorf("path = %q, want /path", r.URL.Path)
		}
		var req types.PlannerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Obstacles) != 1 || req.RobotDir != 2 {
			t.Errorf("request = %+v", req)
		}
		resp := types.PlannerResponse{Data: types.PlannerData{
			Commands:      []string{"FW10", "SP1"},
			SnapPositions: []types.WireSnapPosition{{X: 1, Y: 2, D: 4}},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL)
	plan, err := c.Plan(context.Background(), []types.WireObstacle{{ID: 1, X: 0, Y: 0, Dir: 0}}, types.RobotPose{D: types.East}, false)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Commands) != 2 || plan.Commands[0].Kind != types.CmdMoveForward || plan.Commands[1].Kind != types.CmdSnapshot {
		t.Errorf("commands = %+v", plan.Commands)
	}
	if len(plan.SnapPositions) != 1 || plan.SnapPositions[0].D != types.South {
		t.Errorf("snap positions = %+v", plan.SnapPositions)
	}
}

func TestPlan_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Plan(context.Background(), nil, types.RobotPose{}, false); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
