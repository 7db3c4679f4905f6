package movedef

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LoadLua runs a movedefs script and reads the table it returns:
//
//	return {
//	  { name = "tank", footprint = 2, max_slope = 0.5,
//	    speed = { 1.0, 0.6, 0.0 }, heat_mod = 0.05, heat_produced = 30 },
//	}
//
// speed is indexed by terrain type starting at type 0.
func LoadLua(path string) ([]Def, error) {
	vm := lua.NewState()
	defer vm.Close()

	if err := vm.DoFile(path); err != nil {
		return nil, fmt.Errorf("running movedefs %s: %w", path, err)
	}
	defs, err := readDefs(vm)
	if err != nil {
		return nil, fmt.Errorf("reading movedefs %s: %w", path, err)
	}
	return defs, nil
}

// ParseLua is LoadLua for an in-memory script.
func ParseLua(src string) ([]Def, error) {
	vm := lua.NewState()
	defer vm.Close()

	if err := vm.DoString(src); err != nil {
		return nil, fmt.Errorf("running movedefs: %w", err)
	}
	defs, err := readDefs(vm)
	if err != nil {
		return nil, fmt.Errorf("reading movedefs: %w", err)
	}
	return defs, nil
}

func readDefs(vm *lua.LState) ([]Def, error) {
	if vm.GetTop() == 0 {
		return nil, fmt.Errorf("script returned nothing")
	}
	rt, ok := vm.Get(-1).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script returned %s, want table", vm.Get(-1).Type())
	}

	var defs []Def
	for i := 1; i <= rt.Len(); i++ {
		t, ok := rt.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a table", i)
		}
		d := Def{
			Name:         lua.LVAsString(t.RawGetString("name")),
			Footprint:    int(lua.LVAsNumber(t.RawGetString("footprint"))),
			MaxSlope:     float32(lua.LVAsNumber(t.RawGetString("max_slope"))),
			HeatMod:      float32(lua.LVAsNumber(t.RawGetString("heat_mod"))),
			HeatProduced: int(lua.LVAsNumber(t.RawGetString("heat_produced"))),
		}
		if d.Footprint == 0 {
			d.Footprint = 1
		}
		if st, ok := t.RawGetString("speed").(*lua.LTable); ok {
			for j := 1; j <= st.Len(); j++ {
				d.SpeedByType = append(d.SpeedByType, float32(lua.LVAsNumber(st.RawGetInt(j))))
			}
		}
		defs = append(defs, d)
	}
	return defs, nil
}
