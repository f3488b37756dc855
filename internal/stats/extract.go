package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/EmanuelaBoros/impresso-essentials/internal/bag"
	pkgerrors "github.com/EmanuelaBoros/impresso-essentials/pkg/errors"
)

// splitID parses the composite record id `<source-id>-<year>-...` and
// returns its dash-separated components. Ids with fewer than two components
// cannot identify a statistics bucket and are rejected.
func splitID(kind Kind, rec bag.Record) ([]string, string, error) {
	raw, ok := rec["id"]
	if !ok {
		return nil, "", pkgerrors.Malformed(string(kind), "", "id", "record has no id field")
	}
	id, ok := raw.(string)
	if !ok {
		return nil, "", pkgerrors.Malformed(string(kind), "", "id", "id field is %T, want string", raw)
	}
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return nil, id, pkgerrors.Malformed(string(kind), id, "id", "id does not split into source and year")
	}
	return parts, id, nil
}

// ExtractCanonical maps one canonical issue to its count record: one issue,
// its number of distinct pages, its content items, and how many of those
// are images. Source id and year are included only when the caller needs
// them for global grouping.
func ExtractCanonical(rec bag.Record, includeNpYr bool) (bag.Record, error) {
	parts, id, err := splitID(KindCanonical, rec)
	if err != nil {
		return nil, err
	}

	pp, ok := rec["pp"].([]any)
	if !ok {
		return nil, pkgerrors.Malformed(string(KindCanonical), id, "pp", "missing or invalid page list")
	}
	pages := make(map[string]struct{}, len(pp))
	for _, p := range pp {
		s, ok := p.(string)
		if !ok {
			return nil, pkgerrors.Malformed(string(KindCanonical), id, "pp", "page id is %T, want string", p)
		}
		pages[s] = struct{}{}
	}

	items, ok := rec["i"].([]any)
	if !ok {
		return nil, pkgerrors.Malformed(string(KindCanonical), id, "i", "missing or invalid content item list")
	}
	images := 0
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		meta, ok := m["m"].(map[string]any)
		if !ok {
			continue
		}
		if tp, ok := meta["tp"].(string); ok && tp == "image" {
			images++
		}
	}

	counts := bag.Record{}
	if includeNpYr {
		counts[FieldNpID] = parts[0]
		counts[FieldYear] = parts[1]
	}
	counts[FieldIssues] = 1
	counts[FieldPages] = len(pages)
	counts[FieldContentItemsOut] = len(items)
	counts[FieldImages] = images
	return counts, nil
}

// ExtractRebuilt maps one rebuilt (or passim) content item to its count
// record. The issues field carries the item's issue id, later reduced with
// distinct-count; ft_tokens is the whitespace token count of the full text
// and is omitted in passim mode.
func ExtractRebuilt(rec bag.Record, includeNp, passim bool) (bag.Record, error) {
	parts, _, err := splitID(KindRebuilt, rec)
	if err != nil {
		return nil, err
	}

	counts := bag.Record{}
	if includeNp {
		counts[FieldNpID] = parts[0]
	}
	counts[FieldYear] = parts[1]
	counts[FieldIssues] = strings.Join(parts[:len(parts)-1], "-")
	counts[FieldContentItemsOut] = 1
	if !passim {
		tokens := 0
		if ft, ok := rec["ft"].(string); ok {
			tokens = len(strings.Fields(ft))
		}
		counts[FieldFtTokens] = tokens
	}
	return counts, nil
}

// ExtractEntities maps one entity-linked content item to its count record:
// the mention count and the sorted distinct linked-entity identifiers,
// dropping unlinked ("NIL" or null) mentions.
func ExtractEntities(rec bag.Record) (bag.Record, error) {
	parts, id, err := splitID(KindEntities, rec)
	if err != nil {
		return nil, err
	}

	nes, ok := rec["nes"].([]any)
	if !ok {
		return nil, pkgerrors.Malformed(string(KindEntities), id, "nes", "missing or invalid mention list")
	}
	linked := make(map[string]struct{})
	for _, m := range nes {
		mention, ok := m.(map[string]any)
		if !ok {
			continue
		}
		wkd, ok := mention["wkd_id"].(string)
		if !ok || wkd == "NIL" {
			continue
		}
		linked[wkd] = struct{}{}
	}
	entities := make([]string, 0, len(linked))
	for e := range linked {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	return bag.Record{
		FieldNpID:            parts[0],
		FieldYear:            parts[1],
		FieldIssues:          strings.Join(parts[:len(parts)-1], "-"),
		FieldContentItemsOut: 1,
		FieldNeMentions:      len(nes),
		FieldNeEntities:      entities,
	}, nil
}

// ExtractLangident maps one language-identified content item to its count
// record. The lang_fd value is the detected language label, the literal
// "None" when detection produced nothing, or an already-serialized
// frequency distribution left as-is for the post-aggregation merge.
func ExtractLangident(rec bag.Record) (bag.Record, error) {
	parts, id, err := splitID(KindLangident, rec)
	if err != nil {
		return nil, err
	}

	tp, ok := rec["tp"].(string)
	if !ok {
		return nil, pkgerrors.Malformed(string(KindLangident), id, "tp", "missing or invalid content type")
	}
	images := 0
	if tp == "img" {
		images = 1
	}

	lang := "None"
	if lg, ok := rec["lg"].(string); ok && lg != "" {
		lang = lg
	}

	return bag.Record{
		FieldNpID:            parts[0],
		FieldYear:            parts[1],
		FieldIssues:          strings.Join(parts[:len(parts)-1], "-"),
		FieldContentItemsOut: 1,
		FieldImages:          images,
		FieldLangFd:          lang,
	}, nil
}

// ExtractSolrText maps one search-index content item to its count record,
// reading source, year, and issue id from the Solr metadata fields.
func ExtractSolrText(rec bag.Record) (bag.Record, error) {
	journal, ok := rec["meta_journal_s"].(string)
	if !ok {
		return nil, pkgerrors.Malformed(string(KindSolrText), "", "meta_journal_s", "missing journal field")
	}
	year, err := asYear(rec["meta_year_i"])
	if err != nil {
		return nil, pkgerrors.Malformed(string(KindSolrText), journal, "meta_year_i", "%v", err)
	}
	issueID, ok := rec["meta_issue_id_s"].(string)
	if !ok {
		return nil, pkgerrors.Malformed(string(KindSolrText), journal, "meta_issue_id_s", "missing issue id field")
	}

	return bag.Record{
		FieldNpID:            journal,
		FieldYear:            year,
		FieldIssues:          issueID,
		FieldContentItemsOut: 1,
	}, nil
}

// asYear normalizes the year representations JSON decoding produces.
func asYear(v any) (string, error) {
	switch y := v.(type) {
	case string:
		if y == "" {
			return "", fmt.Errorf("empty year value")
		}
		return y, nil
	case float64:
		return strconv.Itoa(int(y)), nil
	case int:
		return strconv.Itoa(y), nil
	default:
		return "", fmt.Errorf("invalid year value %v (%T)", v, v)
	}
}
