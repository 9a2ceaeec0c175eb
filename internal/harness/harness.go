package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/gelspec"
	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/store"
	"github.com/roach88/gelsim/internal/testutil"
)

// Harness executes scenarios with a fixed run ID and an isolated archive.
type Harness struct {
	store  *store.Store
	table  *ladder.Table
	ids    gel.IDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database.
//
// Execution flow:
//  1. Compile the gel definition against the default ladder table
//  2. Layer the definition's and the scenario's run settings over the defaults
//  3. Run and render the gel
//  4. Archive the run and read it back
//  5. Evaluate assertions against the archived run
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	table, err := ladder.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load ladder table: %w", err)
	}

	h := &Harness{
		store:  st,
		table:  table,
		ids:    testutil.NewFixedIDGenerator(scenario.RunID),
		logger: testutil.DiscardLogger(),
	}

	run, err := h.execute(ctx, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Run = run
	for _, msg := range EvaluateAssertions(run, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario) (store.Run, error) {
	def, err := gelspec.LoadFile(scenario.Gel, h.table)
	if err != nil {
		return store.Run{}, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	params, err := scenario.params(def)
	if err != nil {
		return store.Run{}, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	res, err := gel.Simulate(ctx, def.Config, params,
		gel.WithIDGenerator(h.ids),
		gel.WithLogger(h.logger),
	)
	if err != nil {
		return store.Run{}, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if _, err := h.store.WriteRun(ctx, store.RunFromResult(res, scenario.Name)); err != nil {
		return store.Run{}, fmt.Errorf("archive %s: %w", res.RunID, err)
	}
	run, err := h.store.ReadRun(ctx, res.RunID)
	if err != nil {
		return store.Run{}, fmt.Errorf("read back %s: %w", res.RunID, err)
	}
	return run, nil
}
