package backendfake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/query"
)

type row map[string]any

func (r row) clone() row {
	c := make(row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func toRow(v any) (row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var r row
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	return r, nil
}

func decodeRecords(body []byte) ([]row, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var rows []row
		err := json.Unmarshal(body, &rows)
		return rows, err
	}
	var r row
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return []row{r}, nil
}

func (b *Backend) fillDefaults(r row) {
	if v, ok := r["id"]; !ok || v == nil || v == "" {
		r["id"] = uuid.NewString()
	}
	if v, ok := r["created_at"]; !ok || v == nil || v == "" {
		r["created_at"] = b.now().UTC().Format(time.RFC3339Nano)
	}
}

// promotePending makes provisioned rows whose delay has elapsed visible.
func (b *Backend) promotePending() {
	now := b.now()
	kept := b.pending[:0]
	for _, p := range b.pending {
		if now.Before(p.readyAt) {
			kept = append(kept, p)
			continue
		}
		b.tables["users"] = append(b.tables["users"], p.row)
	}
	b.pending = kept
}

func (b *Backend) serveRest(w http.ResponseWriter, r *http.Request, table string, body []byte) {
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "PGRST301", "message": "JWT expired"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.promotePending()

	params := r.URL.Query()
	pred, err := parsePredicate(params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST100", "message": err.Error()})
		return
	}
	prefer := r.Header.Get("Prefer")

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		b.read(w, r.Method, table, params, pred, prefer)
	case http.MethodPost:
		b.insert(w, table, params, body, prefer)
	case http.MethodPatch:
		b.update(w, table, pred, body, prefer)
	case http.MethodDelete:
		b.remove(w, table, pred, prefer)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "method not allowed"})
	}
}

func (b *Backend) read(w http.ResponseWriter, method, table string, params url.Values, pred predicate, prefer string) {
	var rows []row
	for _, r := range b.tables[table] {
		if pred.match(r) {
			rows = append(rows, r.clone())
		}
	}

	if order := params.Get(query.KeyOrder); order != "" {
		if err := sortRows(rows, order); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST100", "message": err.Error()})
			return
		}
	} else if b.shuffle {
		b.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	}

	total := len(rows)
	offset, limit, err := window(params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST100", "message": err.Error()})
		return
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	if sel := params.Get(query.KeySelect); sel != "" && sel != "*" {
		rows = project(rows, strings.Split(sel, ","))
	}

	if strings.Contains(prefer, "count=exact") {
		if len(rows) == 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", total))
		} else {
			w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%d", offset, offset+len(rows)-1, total))
		}
	}

	if method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeRows(w, http.StatusOK, rows)
}

func (b *Backend) insert(w http.ResponseWriter, table string, params url.Values, body []byte, prefer string) {
	records, err := decodeRecords(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST102", "message": "Empty or invalid json"})
		return
	}

	upsert := strings.Contains(prefer, "resolution=merge-duplicates")
	var conflictCols []string
	if oc := params.Get(query.KeyOnConflict); oc != "" {
		conflictCols = strings.Split(oc, ",")
	}

	staged := cloneRows(b.tables[table])
	var affected []row
	for _, rec := range records {
		if upsert && len(conflictCols) > 0 {
			if idx := findMatching(staged, rec, conflictCols); idx >= 0 {
				merged := staged[idx].clone()
				for k, v := range rec {
					merged[k] = v
				}
				if name, bad := b.violates(table, staged, merged, idx); bad {
					writeConflict(w, name)
					return
				}
				staged[idx] = merged
				affected = append(affected, merged.clone())
				continue
			}
		}

		rec = rec.clone()
		b.fillDefaults(rec)
		if name, bad := b.violates(table, staged, rec, -1); bad {
			writeConflict(w, name)
			return
		}
		staged = append(staged, rec)
		affected = append(affected, rec.clone())
	}

	b.tables[table] = staged
	if !strings.Contains(prefer, "return=representation") {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeRows(w, http.StatusCreated, affected)
}

func (b *Backend) update(w http.ResponseWriter, table string, pred predicate, body []byte, prefer string) {
	var patch row
	if err := json.Unmarshal(body, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST102", "message": "Empty or invalid json"})
		return
	}

	staged := cloneRows(b.tables[table])
	var affected []row
	for i, r := range staged {
		if !pred.match(r) {
			continue
		}
		updated := r.clone()
		for k, v := range patch {
			updated[k] = v
		}
		if name, bad := b.violates(table, staged, updated, i); bad {
			writeConflict(w, name)
			return
		}
		staged[i] = updated
		affected = append(affected, updated.clone())
	}

	b.tables[table] = staged
	if !strings.Contains(prefer, "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRows(w, http.StatusOK, affected)
}

func (b *Backend) remove(w http.ResponseWriter, table string, pred predicate, prefer string) {
	var kept, removed []row
	for _, r := range b.tables[table] {
		if pred.match(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	b.tables[table] = kept

	if !strings.Contains(prefer, "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRows(w, http.StatusOK, removed)
}

// violates reports the unique constraint candidate breaks. A user row still
// waiting on the provisioning trigger counts as committed: it becomes
// visible at the moment of the conflict.
func (b *Backend) violates(table string, rows []row, candidate row, skip int) (string, bool) {
	for _, cols := range b.unique[table] {
		name := table + "_" + strings.Join(cols, "_") + "_key"
		if !hasAll(candidate, cols) {
			continue
		}
		for i, other := range rows {
			if i != skip && sameOn(other, candidate, cols) {
				return name, true
			}
		}
		if table != "users" {
			continue
		}
		for i, p := range b.pending {
			if sameOn(p.row, candidate, cols) {
				b.tables["users"] = append(b.tables["users"], p.row)
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				return name, true
			}
		}
	}
	return "", false
}

func writeConflict(w http.ResponseWriter, constraint string) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"code":    "23505",
		"details": nil,
		"hint":    nil,
		"message": fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
	})
}

func writeRows(w http.ResponseWriter, status int, rows []row) {
	if rows == nil {
		rows = []row{}
	}
	writeJSON(w, status, rows)
}

func cloneRows(rows []row) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

func hasAll(r row, cols []string) bool {
	for _, c := range cols {
		if v, ok := r[c]; !ok || v == nil {
			return false
		}
	}
	return true
}

func sameOn(a, b row, cols []string) bool {
	for _, c := range cols {
		if a[c] == nil || compareAny(a[c], b[c]) != 0 {
			return false
		}
	}
	return true
}

func findMatching(rows []row, candidate row, cols []string) int {
	if !hasAll(candidate, cols) {
		return -1
	}
	for i, r := range rows {
		if sameOn(r, candidate, cols) {
			return i
		}
	}
	return -1
}

func project(rows []row, cols []string) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		p := row{}
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out[i] = p
	}
	return out
}

func window(params url.Values) (offset, limit int, err error) {
	limit = -1
	if s := params.Get(query.KeyLimit); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", s)
		}
	}
	if s := params.Get(query.KeyOffset); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return offset, limit, nil
}

func sortRows(rows []row, order string) error {
	type key struct {
		column string
		desc   bool
	}
	var keys []key
	for _, part := range strings.Split(order, ",") {
		segments := strings.Split(part, ".")
		k := key{column: segments[0]}
		for _, s := range segments[1:] {
			switch s {
			case "asc":
			case "desc":
				k.desc = true
			case "nullsfirst", "nullslast":
			default:
				return fmt.Errorf("invalid order %q", part)
			}
		}
		if k.column == "" {
			return fmt.Errorf("invalid order %q", part)
		}
		keys = append(keys, k)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareAny(rows[i][k.column], rows[j][k.column])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}
