package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sumithkumar07/aetherflow/internal/completion"
	"github.com/sumithkumar07/aetherflow/internal/roster"
)

// fakeClient scripts per-agent behavior for executor tests.
type fakeClient struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]string // agentID -> response (first call)
	votes     map[string]string // agentID -> response (second call)
	fails     map[string]bool
	hangs     map[string]bool
	panics    map[string]bool
}

func (f *fakeClient) Invoke(ctx context.Context, agentID, message string, meta map[string]string) (*completion.Result, error) {
	f.mu.Lock()
	seen := 0
	for _, c := range f.calls {
		if c == agentID {
			seen++
		}
	}
	f.calls = append(f.calls, agentID)
	f.mu.Unlock()

	if f.panics[agentID] {
		panic("provider exploded")
	}
	if f.hangs[agentID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fails[agentID] {
		return nil, errors.New("provider unavailable")
	}

	if seen > 0 && f.votes != nil {
		if v, ok := f.votes[agentID]; ok {
			return &completion.Result{Status: "success", Response: v}, nil
		}
	}
	resp, ok := f.responses[agentID]
	if !ok {
		resp = "response from " + agentID
	}
	return &completion.Result{Status: "success", Response: resp}, nil
}

func (f *fakeClient) calledWith(agentID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c == agentID {
			out = append(out, c)
		}
	}
	return out
}

func testRegistry(t *testing.T) *roster.Registry {
	t.Helper()
	reg, err := roster.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func newExecutor(t *testing.T, client completion.Client) *Executor {
	t.Helper()
	return New(client, testRegistry(t), Options{CallTimeout: 2 * time.Second})
}

var threeAgents = []roster.Role{roster.RoleDeveloper, roster.RoleDesigner, roster.RoleTester}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"parallel", "sequential", "voting"} {
		m, err := ParseMode(name)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", name, err)
		}
		if m.String() != name {
			t.Errorf("round trip %q: got %q", name, m.String())
		}
	}

	_, err := ParseMode("democracy")
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestParallelAllSucceed(t *testing.T) {
	fake := &fakeClient{responses: map[string]string{}}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeParallel, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != OutcomeCompleted {
		t.Errorf("expected completed, got %s", out.Status)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	for role, res := range out.Results {
		if res.Status != StatusSuccess {
			t.Errorf("%s: expected success, got %s (%s)", role, res.Status, res.Error)
		}
	}
}

func TestParallelPartialFailureKeepsAllResults(t *testing.T) {
	fake := &fakeClient{fails: map[string]bool{"designer": true}}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeParallel, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != OutcomePartial {
		t.Errorf("expected partially-failed, got %s", out.Status)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results even with a failure, got %d", len(out.Results))
	}
	if out.Results["designer"].Status != StatusError {
		t.Error("expected designer error result")
	}
	if out.Results["developer"].Status != StatusSuccess || out.Results["tester"].Status != StatusSuccess {
		t.Error("sibling agents must be unaffected by one failure")
	}
}

func TestParallelTimeoutIsolated(t *testing.T) {
	fake := &fakeClient{hangs: map[string]bool{"tester": true}}
	e := New(fake, testRegistry(t), Options{CallTimeout: 50 * time.Millisecond})

	out, err := e.Execute(context.Background(), ModeParallel, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Results["tester"].Error != "timeout" {
		t.Errorf("expected timeout error, got %q", out.Results["tester"].Error)
	}
	if out.Results["developer"].Status != StatusSuccess {
		t.Error("timeout must not affect siblings")
	}
}

func TestPanicBecomesErrorResult(t *testing.T) {
	fake := &fakeClient{panics: map[string]bool{"developer": true}}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeParallel, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	res := out.Results["developer"]
	if res.Status != StatusError || !strings.Contains(res.Error, "panic") {
		t.Errorf("expected recovered panic as error result, got %+v", res)
	}
}

func TestSequentialContextChaining(t *testing.T) {
	fake := &fakeClient{responses: map[string]string{
		"developer": "the implementation is done",
	}}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeSequential, []roster.Role{roster.RoleDeveloper, roster.RoleTester}, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != OutcomeCompleted {
		t.Errorf("expected completed, got %s", out.Status)
	}

	// tester call order follows developer call
	if len(fake.calls) != 2 || fake.calls[0] != "developer" || fake.calls[1] != "tester" {
		t.Fatalf("expected strict order developer, tester; got %v", fake.calls)
	}
}

func TestSequentialContinueOnError(t *testing.T) {
	fake := &fakeClient{fails: map[string]bool{"designer": true}}
	e := newExecutor(t, fake)

	agents := []roster.Role{roster.RoleDesigner, roster.RoleDeveloper, roster.RoleTester}
	out, err := e.Execute(context.Background(), ModeSequential, agents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results after mid-chain failure, got %d", len(out.Results))
	}
	if out.Results["designer"].Status != StatusError {
		t.Error("expected designer failure recorded")
	}
	if out.Results["developer"].Status != StatusSuccess {
		t.Error("chain must continue after a failure by default")
	}
	if out.Status != OutcomePartial {
		t.Errorf("expected partially-failed, got %s", out.Status)
	}
}

func TestSequentialHaltOnError(t *testing.T) {
	fake := &fakeClient{fails: map[string]bool{"designer": true}}
	e := New(fake, testRegistry(t), Options{CallTimeout: time.Second, HaltOnError: true})

	agents := []roster.Role{roster.RoleDesigner, roster.RoleDeveloper}
	out, err := e.Execute(context.Background(), ModeSequential, agents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	if out.Results["developer"].Status != StatusError {
		t.Error("expected developer skipped after halt")
	}
	if got := fake.calledWith("developer"); len(got) != 0 {
		t.Error("developer must not be called after halt")
	}
}

func TestVotingConsensus(t *testing.T) {
	// Designer and tester both name the Developer; the developer's own
	// ballot names nobody.
	fake := &fakeClient{
		responses: map[string]string{
			"developer": "solution d",
			"designer":  "solution g",
			"tester":    "solution t",
		},
		votes: map[string]string{
			"developer": "both look fine",
			"designer":  "Developer has the strongest solution",
			"tester":    "I agree with the developer approach",
		},
	}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeVoting, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Consensus == nil {
		t.Fatal("expected consensus in voting mode")
	}
	c := out.Consensus
	if c.Winner != roster.RoleDeveloper {
		t.Errorf("expected developer winner, got %v", c.Winner)
	}
	if c.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 (2 of 2 votes), got %v", c.Confidence)
	}
	if want := 1.0 / 3.0; c.Agreement != want {
		t.Errorf("expected agreement 1/3, got %v", c.Agreement)
	}
	if c.Tally["developer"] != 2 {
		t.Errorf("expected 2 votes for developer, got %d", c.Tally["developer"])
	}
}

func TestVotingNoVotes(t *testing.T) {
	fake := &fakeClient{
		votes: map[string]string{
			"developer": "hard to say",
			"designer":  "hard to say",
			"tester":    "hard to say",
		},
	}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeVoting, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	c := out.Consensus
	if c.Confidence != 0 {
		t.Errorf("expected confidence 0 with no votes, got %v", c.Confidence)
	}
	if c.Agreement != 0 {
		t.Errorf("expected agreement 0, got %v", c.Agreement)
	}
}

func TestVotingBounds(t *testing.T) {
	fake := &fakeClient{
		votes: map[string]string{
			"developer": "Designer then Tester, maybe Designer again",
			"designer":  "Developer and Tester both did well",
			"tester":    "Developer wins",
		},
	}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeVoting, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	c := out.Consensus

	total := 0
	winnerVotes := c.Tally[c.Winner.String()]
	for _, n := range c.Tally {
		total += n
	}
	if winnerVotes > total {
		t.Errorf("winner votes %d exceed total %d", winnerVotes, total)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		t.Errorf("confidence out of range: %v", c.Confidence)
	}
	if c.Agreement < 0 || c.Agreement > 1 {
		t.Errorf("agreement out of range: %v", c.Agreement)
	}
}

func TestAllAgentsFail(t *testing.T) {
	fake := &fakeClient{fails: map[string]bool{"developer": true, "designer": true, "tester": true}}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeParallel, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != OutcomePartial {
		t.Errorf("expected partially-failed, got %s", out.Status)
	}
	if len(out.Results) != 3 {
		t.Errorf("expected all results present, got %d", len(out.Results))
	}
}

func TestWorkflowCancellation(t *testing.T) {
	fake := &fakeClient{hangs: map[string]bool{"developer": true, "designer": true, "tester": true}}
	e := New(fake, testRegistry(t), Options{CallTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan *Outcome, 1)
	go func() {
		out, _ := e.Execute(ctx, ModeParallel, threeAgents, "build it", nil)
		done <- out
	}()

	select {
	case out := <-done:
		for role, res := range out.Results {
			if res.Status != StatusError {
				t.Errorf("%s: expected error after cancellation, got %s", role, res.Status)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not propagate to in-flight calls")
	}
}

func TestInvalidModeFailsBeforeExecution(t *testing.T) {
	fake := &fakeClient{}
	e := newExecutor(t, fake)

	_, err := e.Execute(context.Background(), Mode(42), threeAgents, "build it", nil)
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Error("no agent may be called for an invalid mode")
	}
}

func TestResultElapsedRecorded(t *testing.T) {
	fake := &fakeClient{}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeParallel, []roster.Role{roster.RoleDeveloper}, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Results["developer"].ElapsedMs < 0 {
		t.Error("elapsed must be non-negative")
	}
}

func TestVotingSummaryMentionsWinner(t *testing.T) {
	fake := &fakeClient{
		votes: map[string]string{
			"developer": "Tester nailed it",
			"designer":  "Tester was most thorough",
			"tester":    "no comment",
		},
	}
	e := newExecutor(t, fake)

	out, err := e.Execute(context.Background(), ModeVoting, threeAgents, "build it", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Consensus.Winner != roster.RoleTester {
		t.Fatalf("expected tester winner, got %v", out.Consensus.Winner)
	}
	if !strings.Contains(out.Consensus.Summary, "Tester") {
		t.Errorf("summary should name the winner: %q", out.Consensus.Summary)
	}
	if !strings.Contains(out.Consensus.Summary, fmt.Sprintf("%d", out.Consensus.Tally["tester"])) {
		t.Errorf("summary should include the vote count: %q", out.Consensus.Summary)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("é", 300) // two bytes per rune
	for _, max := range []int{500, 501} {
		got := truncate(s, max)
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%d) produced invalid UTF-8", max)
		}
		if len(got) > max+len("...") {
			t.Errorf("truncate(%d) returned %d bytes", max, len(got))
		}
	}
	if got := truncate("short", 500); got != "short" {
		t.Errorf("short input must pass through, got %q", got)
	}
}
