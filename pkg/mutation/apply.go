package mutation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/logic"
)

// ErrNotNumeric is returned when arithmetic targets a value that is not a number.
var ErrNotNumeric = errors.New("metadata value is not numeric")

// Env is the per-turn input to Apply.
type Env struct {
	UserResponse string
	Rand         logic.Rand

	// BeforeClear runs after every other directive and before metadata_clear.
	// The runtime uses it for the post script.
	BeforeClear func(md domain.Metadata, res *Result) error
}

// Deferred is a the-llms-response placeholder waiting for feedback text.
type Deferred struct {
	Key    string
	Append bool
}

// Result reports what a transition changed.
type Result struct {
	// TmpKeys lists keys written through tmp_* directives, in write order.
	TmpKeys []string
	// Changed holds the values assigned by add, random and weighted directives.
	Changed domain.Metadata
	// Deferred lists placeholders resolved by ResolveDeferred.
	Deferred []Deferred
}

// TrackTmp records a temporary key once.
func (r *Result) TrackTmp(key string) {
	for _, k := range r.TmpKeys {
		if k == key {
			return
		}
	}
	r.TmpKeys = append(r.TmpKeys, key)
}

type assignFunc func(md domain.Metadata, key string, v Value, env Env) (any, error)

var assigners = map[Kind]assignFunc{
	KindLiteral: func(_ domain.Metadata, _ string, v Value, _ Env) (any, error) {
		return v.Raw, nil
	},
	KindUserResponse: func(_ domain.Metadata, _ string, _ Value, env Env) (any, error) {
		return env.UserResponse, nil
	},
	KindRandomIncrement: func(md domain.Metadata, key string, v Value, env Env) (any, error) {
		roll := v.Low + env.Rand.IntN(v.High-v.Low+1)
		return add(md, key, float64(roll), true)
	},
	KindIncrement: func(md domain.Metadata, key string, v Value, _ Env) (any, error) {
		return add(md, key, v.Delta, v.Integral)
	},
	KindListAppend: func(md domain.Metadata, key string, v Value, _ Env) (any, error) {
		cur := logic.Stringify(md[key])
		if cur == "" {
			return v.Suffix, nil
		}
		return cur + "," + v.Suffix, nil
	},
	KindListRemove: func(md domain.Metadata, key string, v Value, _ Env) (any, error) {
		cur := logic.Stringify(md[key])
		if cur == "" {
			return md[key], nil
		}
		parts := strings.Split(cur, ",")
		kept := parts[:0]
		for _, p := range parts {
			if p != v.Suffix {
				kept = append(kept, p)
			}
		}
		return strings.Join(kept, ","), nil
	},
}

// Apply runs the directives against md in place, in order: add, tmp_add,
// append, tmp_append, remove, random, tmp_random, weighted, tmp weighted,
// BeforeClear, clear. It stops at the first error; earlier writes remain.
func Apply(md domain.Metadata, d *domain.Directives, env Env) (Result, error) {
	res := Result{Changed: domain.Metadata{}}

	if err := assignAll(md, d.Add, env, &res, false); err != nil {
		return res, err
	}
	if err := assignAll(md, d.TmpAdd, env, &res, true); err != nil {
		return res, err
	}
	appendAll(md, d.Append, env, &res, false)
	appendAll(md, d.TmpAppend, env, &res, true)

	for _, key := range d.Remove {
		delete(md, key)
	}

	pickRandom(md, d.Random, env, &res, false)
	pickRandom(md, d.TmpRandom, env, &res, true)
	pickWeighted(md, d.WeightedRandom, env, &res, false)
	pickWeighted(md, d.TmpWeightedRandom, env, &res, true)

	if env.BeforeClear != nil {
		if err := env.BeforeClear(md, &res); err != nil {
			return res, err
		}
	}

	if d.Clear {
		clear(md)
	}
	return res, nil
}

func assignAll(md domain.Metadata, kvs domain.KeyValues, env Env, res *Result, tmp bool) error {
	for _, kv := range kvs {
		v := ParseValue(kv.Value)
		if v.Kind == KindLLMResponse {
			res.Deferred = append(res.Deferred, Deferred{Key: kv.Key})
			if tmp {
				res.TrackTmp(kv.Key)
			}
			continue
		}
		out, err := assigners[v.Kind](md, kv.Key, v, env)
		if err != nil {
			return fmt.Errorf("metadata key %q: %w", kv.Key, err)
		}
		md[kv.Key] = out
		res.Changed[kv.Key] = out
		if tmp {
			res.TrackTmp(kv.Key)
		}
	}
	return nil
}

func appendAll(md domain.Metadata, kvs domain.KeyValues, env Env, res *Result, tmp bool) {
	for _, kv := range kvs {
		item := kv.Value
		switch ParseValue(item).Kind {
		case KindLLMResponse:
			res.Deferred = append(res.Deferred, Deferred{Key: kv.Key, Append: true})
			if tmp {
				res.TrackTmp(kv.Key)
			}
			continue
		case KindUserResponse:
			item = env.UserResponse
		}
		md[kv.Key] = appended(md, kv.Key, item)
		if tmp {
			res.TrackTmp(kv.Key)
		}
	}
}

// appended promotes a scalar to a singleton list and adds item, flattening lists.
func appended(md domain.Metadata, key string, item any) []any {
	var list []any
	if cur, ok := md[key]; ok {
		if existing, isList := cur.([]any); isList {
			list = append(list, existing...)
		} else {
			list = []any{cur}
		}
	}
	if items, ok := item.([]any); ok {
		return append(list, items...)
	}
	return append(list, item)
}

func pickRandom(md domain.Metadata, kvs domain.KeyValues, env Env, res *Result, tmp bool) {
	if len(kvs) == 0 {
		return
	}
	kv := kvs[env.Rand.IntN(len(kvs))]
	md[kv.Key] = kv.Value
	res.Changed[kv.Key] = kv.Value
	if tmp {
		res.TrackTmp(kv.Key)
	}
}

func pickWeighted(md domain.Metadata, wds domain.WeightedDirectives, env Env, res *Result, tmp bool) {
	for _, wd := range wds {
		v, ok := logic.WeightedPick(wd.Options, env.Rand)
		if !ok {
			continue
		}
		md[wd.Key] = v
		res.Changed[wd.Key] = v
		if tmp {
			res.TrackTmp(wd.Key)
		}
	}
}

func add(md domain.Metadata, key string, delta float64, integral bool) (any, error) {
	cur, ok := md[key]
	if !ok || cur == nil {
		cur = 0
	}
	base, isNum := number(cur)
	if !isNum {
		return nil, fmt.Errorf("%w: %q holds %v", ErrNotNumeric, key, cur)
	}
	_, curIsInt := cur.(int)
	return normalizeNumber(base+delta, integral && (curIsInt || isWhole(base))), nil
}

func number(v any) (float64, bool) {
	switch v.(type) {
	case bool, string:
		return 0, false
	}
	return logic.ToFloat(v)
}

func isWhole(f float64) bool { return f == math.Trunc(f) }

func normalizeNumber(f float64, preferInt bool) any {
	if preferInt && isWhole(f) && math.Abs(f) < 1<<53 {
		return int(f)
	}
	return f
}

// ResolveDeferred fills the-llms-response placeholders with text.
func ResolveDeferred(md domain.Metadata, deferred []Deferred, text string) {
	for _, d := range deferred {
		if d.Append {
			md[d.Key] = appended(md, d.Key, text)
			continue
		}
		md[d.Key] = text
	}
}

// Purge removes keys. Missing keys are ignored.
func Purge(md domain.Metadata, keys []string) {
	for _, k := range keys {
		delete(md, k)
	}
}
