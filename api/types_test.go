package api

import "testing"

func TestVarObjIsCompound(t *testing.T) {
	cases := []struct {
		name string
		obj  VarObj
		want bool
	}{
		{"scalar", VarObj{Value: "000123"}, false},
		{"children", VarObj{NumChild: 3, Value: "000123"}, true},
		{"opaque value", VarObj{Value: "{...}"}, true},
		{"dynamic array", VarObj{Dynamic: true, DisplayHint: "array"}, true},
		{"dynamic map", VarObj{Dynamic: true, DisplayHint: "map"}, true},
		{"dynamic string", VarObj{Dynamic: true, DisplayHint: "string"}, false},
		{"static array hint", VarObj{DisplayHint: "array"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.obj.IsCompound(); got != tc.want {
				t.Errorf("IsCompound() = %v, want %v", got, tc.want)
			}
		})
	}
}
