package search

import (
	"reflect"
	"testing"
	"time"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(nil)
	if len(req.Include) != 0 || len(req.Exclude) != 0 || req.Date != nil {
		t.Fatalf("empty terms should yield an empty request, got %+v", req)
	}
	if !req.Empty() {
		t.Error("Empty() = false for empty request")
	}

	req = NewRequest([]string{"Include", "!EXCLUDE", "include!", "include", "", "!"})
	if want := []string{"include", "include!"}; !reflect.DeepEqual(req.Include, want) {
		t.Errorf("Include = %v, want %v", req.Include, want)
	}
	if want := []string{"exclude"}; !reflect.DeepEqual(req.Exclude, want) {
		t.Errorf("Exclude = %v, want %v", req.Exclude, want)
	}
}

func TestWithoutInclude(t *testing.T) {
	req := NewRequest([]string{"a", "b", "c"})
	out := req.WithoutInclude(1)
	if want := []string{"a", "c"}; !reflect.DeepEqual(out.Include, want) {
		t.Errorf("Include = %v, want %v", out.Include, want)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(req.Include, want) {
		t.Errorf("original mutated: %v", req.Include)
	}
}

func TestWithDateTruncatesToUTCDay(t *testing.T) {
	req := NewRequest(nil).WithDate(time.Unix(1450794188, 0))
	want := time.Date(2015, time.December, 22, 0, 0, 0, 0, time.UTC)
	if req.Date == nil || !req.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", req.Date, want)
	}
	if !SameDay(time.Unix(1450794188, 0), *req.Date) {
		t.Error("SameDay should match the source timestamp")
	}
	if SameDay(time.Unix(1373500800, 0), *req.Date) {
		t.Error("SameDay should not match another day")
	}
}

func TestBuilderAppliesProcessorsInOrder(t *testing.T) {
	var order []string
	first := ProcessorFunc(func(r Request) Request {
		order = append(order, "first")
		r.Include = append(r.Include, "added")
		return r
	})
	second := ProcessorFunc(func(r Request) Request {
		order = append(order, "second")
		if len(r.Include) > 0 {
			r = r.WithoutInclude(0)
		}
		return r
	})

	req := NewBuilder(first, second).Build([]string{"term"})
	if want := []string{"first", "second"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if want := []string{"added"}; !reflect.DeepEqual(req.Include, want) {
		t.Errorf("Include = %v, want %v", req.Include, want)
	}
}

func TestNilBuilder(t *testing.T) {
	var b *Builder
	req := b.Build([]string{"x", "!y"})
	if len(req.Include) != 1 || len(req.Exclude) != 1 {
		t.Errorf("nil builder should still parse terms, got %+v", req)
	}
}
