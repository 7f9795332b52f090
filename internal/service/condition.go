package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"vouchers/internal/model"
)

// Verdict is the result of evaluating voucher conditions.
type Verdict struct {
	Passed bool
	Reason string
}

// Pass is the verdict of satisfied conditions.
var Pass = Verdict{Passed: true}

// Fail returns a failing verdict with reason.
func Fail(reason string) Verdict {
	return Verdict{Reason: reason}
}

// ConditionEvaluator decides whether the conditions attached to a voucher hold.
// An error means the evaluation itself failed, not that the conditions did.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, voucher *model.Voucher, user Redeemer, extra map[string]any) (Verdict, error)
}

// ConditionFunc adapts a function to ConditionEvaluator.
type ConditionFunc func(ctx context.Context, voucher *model.Voucher, user Redeemer, extra map[string]any) (Verdict, error)

func (f ConditionFunc) Evaluate(ctx context.Context, voucher *model.Voucher, user Redeemer, extra map[string]any) (Verdict, error) {
	return f(ctx, voucher, user, extra)
}

// AllowAll accepts every voucher.
var AllowAll ConditionEvaluator = ConditionFunc(func(context.Context, *model.Voucher, Redeemer, map[string]any) (Verdict, error) {
	return Pass, nil
})

// MatchExtra treats the voucher conditions as a JSON object whose entries must
// all be present in extra with equal values.
//
//	conditions {"channel":"web"} + extra {"channel":"web","cart":3} -> pass
var MatchExtra ConditionEvaluator = ConditionFunc(matchExtra)

func matchExtra(_ context.Context, voucher *model.Voucher, _ Redeemer, extra map[string]any) (Verdict, error) {
	if len(voucher.Conditions) == 0 || string(voucher.Conditions) == "null" {
		return Pass, nil
	}

	var want map[string]any
	if err := json.Unmarshal(voucher.Conditions, &want); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode voucher conditions: %w", err)
	}

	// Normalise extra to JSON types so numbers compare as float64 on both sides.
	got := map[string]any{}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to encode condition input: %w", err)
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			return Verdict{}, fmt.Errorf("failed to decode condition input: %w", err)
		}
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := got[k]
		if !ok {
			return Fail(fmt.Sprintf("%s is required", k)), nil
		}
		if !reflect.DeepEqual(v, want[k]) {
			return Fail(fmt.Sprintf("%s does not match", k)), nil
		}
	}

	return Pass, nil
}
