// Package planner is the Route Planner HTTP client: given a map and start
// pose, POST to the planner service and return an ordered command list and
// snapshot poses. Same http.NewRequestWithContext + io.ReadAll +
// status-code check + wrapped-error shape used by the other HTTP clients
// in this module, bounded by a single timeout.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldrelay/missionctl/internal/types"
)

const defaultTimeout = 20 * time.Second

// Client is the Route Planner HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting baseURL with the default 20s bounded
// timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Plan performs the planner round-trip: POST <base>/path with the obstacle
// list and start pose, and parses the response into a types.Plan.
func (c *Client) Plan(ctx context.Context, obstacles []types.WireObstacle, pose types.RobotPose, retrying bool) (types.Plan, error) {
	reqBody := types.PlannerRequest{
		Obstacles: obstacles,
		RobotX:    pose.X,
		RobotY:    pose.Y,
		RobotDir:  int(pose.D),
		Retrying:  retrying,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return types.Plan{}, fmt.Errorf("planner: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/path", bytes.NewReader(body))
	if err != nil {
		return types.Plan{}, fmt.Errorf("planner: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Plan{}, fmt.Errorf("planner: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Plan{}, fmt.Errorf("planner: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return types.Plan{}, fmt.Errorf("planner: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed types.PlannerResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return types.Plan{}, fmt.Errorf("planner: unmarshal response: %w", err)
	}

	return toPlan(parsed.Data)
}

// toPlan decodes the planner's command token list ("FW10","BW5","FL90",
// "FR90","SP3") and 0-indexed/8-way snap positions into a types.Plan.
func toPlan(data types.PlannerData) (types.Plan, error) {
	plan := types.Plan{
		Commands:      make([]types.Command, 0, len(data.Commands)),
		SnapPositions: make([]types.SnapPosition, 0, len(data.SnapPositions)),
	}
	for _, tok := range data.Commands {
		cmd, err := parseToken(tok)
		if err != nil {
			return types.Plan{}, err
		}
		plan.Commands = append(plan.Commands, cmd)
	}
	for _, sp := range data.SnapPositions {
		plan.SnapPositions = append(plan.SnapPositions, types.SnapPosition{X: sp.X, Y: sp.Y, D: types.Direction(sp.D)})
	}
	return plan, nil
}

func parseToken(tok string) (types.Command, error) {
	if len(tok) < 3 {
		return types.Command{}, fmt.Errorf("planner: malformed command token %q", tok)
	}
	prefix, rest := tok[:2], tok[2:]
	n, err := strconv.Atoi(rest)
	if err != nil {
		return types.Command{}, fmt.Errorf("planner: malformed command token %q: %w", tok, err)
	}
	switch prefix {
	case "FW":
		return types.Command{Kind: types.CmdMoveForward, Value: n}, nil
	case "BW":
		return types.Command{Kind: types.CmdMoveBackward, Value: n}, nil
	case "FL":
		return types.Command{Kind: types.CmdTurnLeft, Value: n}, nil
	case "FR":
		return types.Command{Kind: types.CmdTurnRight, Value: n}, nil
	case "SP":
		return types.Command{Kind: types.CmdSnapshot, Value: n}, nil
	default:
		return types.Command{}, fmt.Errorf("planner: unknown command prefix %q in token %q", prefix, tok)
	}
}
