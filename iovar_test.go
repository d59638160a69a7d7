package openisl

import "testing"

func TestNewIoVarDefaults(t *testing.T) {
	v := NewIoVar("v1", "Token1W", Output)
	if v.State() != NotDefined {
		t.Fatalf("State() = %v, want NotDefined", v.State())
	}
	if v.EffectiveStep(0.1) != 0.1 {
		t.Fatalf("EffectiveStep with no override should inherit connector step")
	}
	if v.SyncTimeoutMs() != -1 {
		t.Fatalf("SyncTimeoutMs() = %d, want -1 (infinite)", v.SyncTimeoutMs())
	}
	if v.OnBus() {
		t.Fatal("fresh IoVar with no connect_id should report OnBus() == false")
	}
}

func TestIoVarStepSizeZeroNormalizesToMinusOne(t *testing.T) {
	v := NewIoVar("v1", "x", Input)
	v.SetStepSize(0)
	if v.EffectiveStep(0.25) != 0.25 {
		t.Fatal("step_size of 0 should normalize to -1 (inherit)")
	}
	v.SetStepSize(0.05)
	if v.EffectiveStep(0.25) != 0.05 {
		t.Fatalf("EffectiveStep() = %v, want local override 0.05", v.EffectiveStep(0.25))
	}
}

func TestIoVarLifecycleTransitions(t *testing.T) {
	v := NewIoVar("v1", "x", Input)
	dt := New(KindReal, 1)
	v.SetDataType(dt)
	if v.State() != PartiallyDefined {
		t.Fatalf("State() after SetDataType = %v, want PartiallyDefined", v.State())
	}
	if err := v.MarkFullyDefined(); err == nil {
		t.Fatal("MarkFullyDefined should fail before the DataType is allocated")
	}
	if err := dt.Allocate(); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := v.MarkFullyDefined(); err != nil {
		t.Fatalf("MarkFullyDefined: %v", err)
	}
	if v.State() != FullyDefined {
		t.Fatalf("State() = %v, want FullyDefined", v.State())
	}
	v.MarkConnected()
	if v.State() != IsConnected {
		t.Fatalf("State() = %v, want IsConnected", v.State())
	}
}

func TestIoVarCheckRequiresIDAndDataType(t *testing.T) {
	v := &IoVar{}
	if err := v.Check(); err == nil {
		t.Fatal("Check on an empty IoVar should fail (no id)")
	}
	v2 := NewIoVar("v2", "x", Input)
	if err := v2.Check(); err == nil {
		t.Fatal("Check should fail before a DataType is assigned")
	}
	v2.SetDataType(New(KindReal, 1))
	if err := v2.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestIoVarCheckRejectsEmptyStructure(t *testing.T) {
	v := NewIoVar("v3", "x", Input)
	v.SetDataType(New(KindStructure, 1))
	if err := v.Check(); err == nil {
		t.Fatal("Check should reject a structure type with no fields")
	}
}
