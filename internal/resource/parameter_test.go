// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package resource

import "testing"

func TestIsSame_DefaultEqualityByType(t *testing.T) {
	cases := []struct {
		name    string
		setting ParameterSetting
		desired any
		current any
		want    bool
	}{
		{"bool coercion", ParameterSetting{Type: TypeBoolean}, "true", true, true},
		{"number coercion", ParameterSetting{Type: TypeNumber}, "3", 3.0, true},
		{"string coercion", ParameterSetting{Type: TypeString}, "x", "x", true},
		{"string mismatch", ParameterSetting{Type: TypeString}, "x", "y", false},
		{"version substring asymmetric", ParameterSetting{Type: TypeVersion}, "1.2.3", "1.2.3-rc1", true},
		{"version substring reversed fails", ParameterSetting{Type: TypeVersion}, "1.2.3-rc1", "1.2.3", false},
		{"any strict equal", ParameterSetting{Type: TypeAny}, "x", "x", true},
		{"any strict unequal", ParameterSetting{Type: TypeAny}, "x", 5.0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsSame(tc.desired, tc.current, tc.setting)
			if got != tc.want {
				t.Errorf("IsSame(%v, %v) = %v, want %v", tc.desired, tc.current, got, tc.want)
			}
		})
	}
}

func TestIsSame_P7_DirectoryTildeEquality(t *testing.T) {
	home, err := normalizeDirectory("~")
	if err != nil {
		t.Fatalf("failed to resolve home: %v", err)
	}
	setting := ParameterSetting{Type: TypeDirectory}
	if !IsSame("~/x", home+"/x", setting) {
		t.Fatalf("expected ~/x to equal resolved home directory form")
	}
}

func TestIsSame_CustomIsEqualWins(t *testing.T) {
	called := false
	setting := ParameterSetting{
		Type: TypeString,
		IsEqual: func(desired, current any) bool {
			called = true
			return true
		},
	}
	if !IsSame("anything", "else", setting) {
		t.Fatalf("custom IsEqual should have made these equal")
	}
	if !called {
		t.Fatalf("custom IsEqual was not invoked")
	}
}

func TestIsSame_ArrayWithCustomElementEquality(t *testing.T) {
	setting := ParameterSetting{
		Type: TypeArray,
		IsElementEqual: func(a, b any) bool {
			as, _ := a.(string)
			bs, _ := b.(string)
			return len(as) == len(bs)
		},
	}
	desired := []any{"aa", "bbb"}
	current := []any{"cc", "ddd"}
	if !IsSame(desired, current, setting) {
		t.Fatalf("expected arrays to match under custom element equality")
	}
}

func TestDiffArray(t *testing.T) {
	desired := []any{1.0, 2.0, 3.0}
	current := []any{3.0, 2.0, 4.0}

	added, removed := DiffArray(desired, current, nil)
	if len(added) != 1 || added[0] != 1.0 {
		t.Fatalf("expected only 1.0 added, got %+v", added)
	}
	if len(removed) != 1 || removed[0] != 4.0 {
		t.Fatalf("expected only 4.0 removed, got %+v", removed)
	}
}
