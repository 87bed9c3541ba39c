package runtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
)

func TestStoreCreateThenLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	stack := objects.NewStack([]encoding.Digest{encoding.Hash([]byte("layer-a"))})
	if _, err := store.Create("r1", true, 1234, stack, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := store.Load("r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Name != "r1" || !rec.Status.Running || rec.Status.Owner != 1234 || !rec.Status.Editable {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Stack) != 1 {
		t.Fatalf("stack length = %d, want 1", len(rec.Stack))
	}
}

func TestStoreCreateRejectsDuplicateName(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	stack := objects.NewStack(nil)
	if _, err := store.Create("dup", false, 1, stack, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = store.Create("dup", false, 1, stack, nil)
	if !errors.Is(err, ErrRuntimeExists) {
		t.Fatalf("err = %v, want ErrRuntimeExists", err)
	}
}

func TestStoreLoadMissingReturnsUnknownRuntime(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.Load("nope")
	if !errors.Is(err, ErrUnknownRuntime) {
		t.Fatalf("err = %v, want ErrUnknownRuntime", err)
	}
}

func TestStoreUpdateIsDurable(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	stack := objects.NewStack(nil)
	if _, err := store.Create("r1", true, 1, stack, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Update("r1", func(rec *Record) error {
		rec.Status.Running = false
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reopened, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore (reopen): %v", err)
	}
	rec, err := reopened.Load("r1")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if rec.Status.Running {
		t.Fatal("update was not durably persisted")
	}
}

func TestStoreRemoveThenList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	stack := objects.NewStack(nil)
	for _, name := range []string{"a", "b"} {
		if _, err := store.Create(name, false, 1, stack, nil); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	if err := store.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	names, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("List = %v, want [b]", names)
	}
}

func TestRecordStackDigestRoundTripsThroughJSON(t *testing.T) {
	d := encoding.Hash([]byte("payload"))
	rec := Record{Name: "r", Stack: []encoding.Digest{d}}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Stack) != 1 || decoded.Stack[0] != d {
		t.Fatalf("stack digest did not round-trip: %+v", decoded.Stack)
	}
}
