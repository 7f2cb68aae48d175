package pipeline

import (
	"errors"
	"reflect"
	"testing"

	"kbsync/internal/category"
)

const sampleDump = `-- knowledge base export
INSERT INTO kb_entries (id, category_id, question, answer, description) VALUES
(1, 'billing', 'How do I pay?', 'By card.', 'Payment details.'),
(2, 'billing.invoices', 'Where are invoices?', 'In your account.', NULL),
(3, 'account', 'How do I reset?', 'Use the link.', 'Reset flow.');
INSERT INTO kb_meta (id, exported_at) VALUES
(1, '2026-08-01');
`

func TestExtract(t *testing.T) {
	t.Parallel()

	m, st, err := Extract([]byte(sampleDump))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := Stats{Statements: 2, Rows: 4, Categories: 2}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"billing", "account"}) {
		t.Errorf("keys = %v", got)
	}
	if n := len(m.Items("billing")); n != 2 {
		t.Errorf("billing items = %d, want 2", n)
	}
}

func TestExtractLegacyColumns(t *testing.T) {
	t.Parallel()

	dump := `INSERT INTO qa (cat_id, question, description) VALUES ('3', 'What?', 'Because.');`
	m, st, err := Extract([]byte(dump))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := (Stats{Statements: 1, Rows: 1, Categories: 1}); st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	items := m.Items("3")
	if len(items) != 1 {
		t.Fatalf("items for %q = %d, want 1", "3", len(items))
	}
	want := category.Item{Question: "What?", Short: "Because.", Full: "Because."}
	if items[0] != want {
		t.Errorf("item = %+v, want %+v", items[0], want)
	}
}

func TestExtractNoCategories(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"no inserts", []byte("SELECT 1;")},
		{"no category column", []byte("INSERT INTO t (a, b) VALUES (1, 2);")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, _, err := Extract(tc.buf)
			if !errors.Is(err, category.ErrNoCategories) {
				t.Fatalf("err = %v, want ErrNoCategories", err)
			}
			if m != nil {
				t.Errorf("map = %v, want nil", m)
			}
		})
	}
}

func TestExtractStatsOnError(t *testing.T) {
	t.Parallel()

	_, st, err := Extract([]byte("INSERT INTO t (a) VALUES (1), (2);"))
	if err == nil {
		t.Fatal("want error")
	}
	if st.Statements != 1 || st.Rows != 2 || st.Categories != 0 {
		t.Errorf("stats = %+v, want 1 statement, 2 rows, 0 categories", st)
	}
}
