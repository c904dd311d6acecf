// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	hcversion "github.com/hashicorp/go-version"
)

// ParameterType discriminates how a parameter's desired and current values
// are interpreted and, by default, compared.
type ParameterType int

const (
	TypeAny ParameterType = iota
	TypeString
	TypeNumber
	TypeBoolean
	TypeArray
	TypeDirectory
	TypeVersion
	TypeStateful
)

// ParameterSetting is the per-parameter contract described in the
// configuration model: how to type-check, default, compare and apply
// changes to one named parameter of a resource.
type ParameterSetting struct {
	Type ParameterType

	// Default is substituted for the parameter when it is absent from a
	// desired configuration.
	Default any

	// IsEqual overrides the type's default equality check when set.
	IsEqual func(desired, current any) bool

	// IsElementEqual overrides element comparison for TypeArray parameters.
	IsElementEqual func(a, b any) bool

	// CanModify, when false, forces a Recreate whenever this parameter
	// changes instead of a Modify.
	CanModify bool

	// InputTransformation is applied to the desired value before diffing.
	InputTransformation func(any) any

	// Stateful is set only for TypeStateful parameters: the lifecycle
	// object owning add/modify/remove for this parameter, plus its
	// position among stateful siblings during apply.
	Stateful StatefulParameter
	Order    int
}

// IsSame implements the equality decision tree shared by ChangeSet and the
// stateful-parameter array specialization: a custom IsEqual always wins;
// otherwise arrays are compared as multisets; otherwise the type's default
// equality applies, falling back to strict equality for TypeAny.
func IsSame(desired, current any, setting ParameterSetting) bool {
	if setting.IsEqual != nil {
		return setting.IsEqual(desired, current)
	}
	if setting.Type == TypeArray {
		return arraysEqual(desired, current, setting.IsElementEqual)
	}
	switch setting.Type {
	case TypeBoolean:
		db, derr := coerceBool(desired)
		cb, cerr := coerceBool(current)
		if derr != nil || cerr != nil {
			return reflect.DeepEqual(desired, current)
		}
		return db == cb
	case TypeNumber:
		dn, derr := coerceNumber(desired)
		cn, cerr := coerceNumber(current)
		if derr != nil || cerr != nil {
			return reflect.DeepEqual(desired, current)
		}
		return dn == cn
	case TypeString:
		return coerceString(desired) == coerceString(current)
	case TypeDirectory:
		return directoriesEqual(coerceString(desired), coerceString(current))
	case TypeVersion:
		// Asymmetric by design: current satisfies desired if current
		// contains desired as a substring (e.g. "1.2.3-rc1" satisfies
		// a desired "1.2.3"). Both sides are canonicalized through
		// go-version first so that "v1.2.3" and "1.2.3" compare the same.
		return strings.Contains(canonicalVersion(coerceString(current)), canonicalVersion(coerceString(desired)))
	default:
		if reflect.DeepEqual(desired, current) {
			return true
		}
		return structurallyEqual(desired, current)
	}
}

// canonicalVersion normalizes a version string through go-version so that
// equivalent forms (a "v" prefix, differing zero-padding) compare the same;
// strings go-version can't parse (e.g. "1.2.3-rc1" is still valid semver-ish
// here) are returned unchanged.
func canonicalVersion(s string) string {
	v, err := hcversion.NewVersion(s)
	if err != nil {
		return s
	}
	return v.String()
}

func coerceBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	case nil:
		return false, fmt.Errorf("nil value")
	default:
		return false, fmt.Errorf("cannot coerce %T to bool", v)
	}
}

func coerceNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	case nil:
		return 0, fmt.Errorf("nil value")
	default:
		return 0, fmt.Errorf("cannot coerce %T to number", v)
	}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// directoriesEqual implements P7: `~/x` and the resolved home directory
// form of the same path must compare equal, and platform path separators
// are normalized before comparison.
func directoriesEqual(a, b string) bool {
	na, errA := normalizeDirectory(a)
	nb, errB := normalizeDirectory(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return na == nb
}

func normalizeDirectory(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Clean(expanded)), nil
}

// structurallyEqual is the recursive fallback for TypeAny values that are
// not identical under reflect.DeepEqual but may still represent the same
// JSON shape (e.g. a desired map decoded to map[string]any vs. a current
// value produced by a resource's own refresh implementation).
func structurallyEqual(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !structurallyEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !structurallyEqual(v, bvv) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// arraysEqual compares two values as multisets: same length, and a stable
// sort-then-compare finds a one-to-one element pairing. This is correct for
// arrays of JSON scalars; heterogeneous or object arrays should supply an
// explicit IsElementEqual (spec Design Notes §9).
func arraysEqual(desired, current any, isElementEqual func(a, b any) bool) bool {
	da, aok := toSlice(desired)
	ca, cok := toSlice(current)
	if !aok || !cok {
		return reflect.DeepEqual(desired, current)
	}
	if len(da) != len(ca) {
		return false
	}
	eq := isElementEqual
	if eq == nil {
		eq = func(a, b any) bool { return reflect.DeepEqual(a, b) }
	}

	sortBySortKey(da)
	sortBySortKey(ca)

	used := make([]bool, len(ca))
	for _, dv := range da {
		found := false
		for j, cv := range ca {
			if used[j] {
				continue
			}
			if eq(dv, cv) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// sortBySortKey gives arrays a stable canonical order before comparison, so
// that multiset equality doesn't depend on the caller's provided ordering.
func sortBySortKey(s []any) {
	sort.SliceStable(s, func(i, j int) bool {
		return fmt.Sprintf("%v", s[i]) < fmt.Sprintf("%v", s[j])
	})
}

// DiffArray computes an element-level add/remove diff between a desired and
// current array, used both by StatefulParameter's default array apply and
// by tests. Elements considered equal by eq are treated as unchanged.
func DiffArray(desired, current []any, eq func(a, b any) bool) (added, removed []any) {
	if eq == nil {
		eq = func(a, b any) bool { return reflect.DeepEqual(a, b) }
	}
	usedCurrent := make([]bool, len(current))
	for _, d := range desired {
		matched := false
		for i, c := range current {
			if usedCurrent[i] {
				continue
			}
			if eq(d, c) {
				usedCurrent[i] = true
				matched = true
				break
			}
		}
		if !matched {
			added = append(added, d)
		}
	}
	for i, c := range current {
		if !usedCurrent[i] {
			removed = append(removed, c)
		}
	}
	return added, removed
}
