package join

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miku/scholixdump/filter"
	"github.com/miku/scholixdump/schema/dump"
	"github.com/miku/scholixdump/schema/scholix"
	"github.com/miku/scholixdump/xio"
)

const entitiesJSON = `{"dnetIdentifier":"e1","identifier":[{"identifier":"10.1/a","schema":"doi","url":"https://doi.org/10.1/a"}],"objectType":"publication","title":"Paper"}
{"dnetIdentifier":"e2","identifier":[{"identifier":"10.2/b","schema":"doi"}],"objectType":"dataset","title":"Data","publisher":[{"name":"Zenodo"}]}

{"dnetIdentifier":"e3","objectType":"software","creator":[{"name":"Doe","identifiers":[{"identifier":"0000-0001","schema":"orcid"}]}]}
`

const relationshipsJSON = `{"sourceId":"e1","targetId":"e2","relationType":"IsSupplementedBy","linkProviders":["DataCite"],"publicationDate":"2020-01-01","sourcePidType":["doi"],"targetPidType":["doi"]}
{"sourceId":"e2","targetId":"e3","relationType":"cites","linkProviders":["crossref"],"sourcePidType":["doi"],"targetPidType":["swhid"]}
{"sourceId":"e1","targetId":"missing","relationType":"references","linkProviders":["crossref"]}
`

func indices(t *testing.T) map[string]Index {
	t.Helper()
	sqlite, err := OpenSQLiteIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Index{
		IndexMemory: NewMemoryIndex(),
		IndexSQLite: sqlite,
	}
}

func TestLoadIndex(t *testing.T) {
	ctx := context.Background()
	for name, idx := range indices(t) {
		t.Run(name, func(t *testing.T) {
			n, err := LoadIndex(ctx, strings.NewReader(entitiesJSON), idx, LoadOptions{BatchSize: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
			size, err := idx.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, size)

			e, err := idx.Get(ctx, "e2")
			require.NoError(t, err)
			assert.Equal(t, "Data", e.Title)
			assert.Equal(t, []dump.Publisher{{Name: "Zenodo"}}, e.Publisher)

			_, err = idx.Get(ctx, "nope")
			assert.ErrorIs(t, err, ErrMissingEntity)

			// last one wins
			require.NoError(t, idx.Put(ctx, &dump.Entity{DnetIdentifier: "e2", Title: "Data v2"}))
			e, err = idx.Get(ctx, "e2")
			require.NoError(t, err)
			assert.Equal(t, "Data v2", e.Title)
		})
	}
}

func TestLoadIndexInvalid(t *testing.T) {
	ctx := context.Background()
	input := entitiesJSON + `{"title":"no id"}` + "\n" + `{broken` + "\n"
	_, err := LoadIndex(ctx, strings.NewReader(input), NewMemoryIndex(), LoadOptions{})
	assert.ErrorIs(t, err, dump.ErrMissingID)

	idx := NewMemoryIndex()
	n, err := LoadIndex(ctx, strings.NewReader(input), idx, LoadOptions{SkipInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func newJoiner(t *testing.T, f filter.Filter) *Joiner {
	t.Helper()
	idx := NewMemoryIndex()
	_, err := LoadIndex(context.Background(), strings.NewReader(entitiesJSON), idx, LoadOptions{})
	require.NoError(t, err)
	return &Joiner{Index: idx, Filter: f}
}

func runLines(t *testing.T, j *Joiner, input string) []*scholix.Scholix {
	t.Helper()
	f := j.ProcessFunc(context.Background())
	var result []*scholix.Scholix
	for _, line := range strings.Split(strings.TrimSpace(input), "\n") {
		b, err := f([]byte(line))
		require.NoError(t, err)
		if b == nil {
			continue
		}
		var s scholix.Scholix
		require.NoError(t, json.Unmarshal(b, &s))
		result = append(result, &s)
	}
	return result
}

func TestJoinerProcessFunc(t *testing.T) {
	j := newJoiner(t, filter.Filter{})
	links := runLines(t, j, relationshipsJSON)
	require.Len(t, links, 2)

	assert.Equal(t, "IsSupplementedBy", links[0].RelationshipType.Name)
	assert.Equal(t, "2020-01-01", links[0].LinkPublicationDate)
	assert.Equal(t, "Paper", links[0].Source.Title)
	assert.Equal(t, "Data", links[0].Target.Title)
	assert.Equal(t, "10.2/b", links[0].Target.Identifier[0].ID)
	assert.Nil(t, links[0].Target.Identifier[0].IDURL)
	assert.Equal(t, []scholix.LinkProvider{{Name: "DataCite", Identifier: []scholix.Identifier{}}}, links[0].LinkProvider)

	assert.Equal(t, "IsRelatedTo", links[1].RelationshipType.Name)
	assert.Equal(t, "cites", links[1].RelationshipType.SubType)
	assert.Equal(t, "Doe", links[1].Target.Creator[0].Name)

	assert.Equal(t, Stats{Read: 3, Missing: 1, Written: 2}, j.Stats())
}

func TestJoinerFilters(t *testing.T) {
	var cases = []struct {
		name   string
		filter filter.Filter
		want   int
	}{
		{"datasource", filter.Filter{Datasource: "datacite"}, 1},
		{"relation", filter.Filter{Relation: "CITES"}, 1},
		{"source pid", filter.Filter{SourcePidType: "DOI"}, 2},
		{"target pid", filter.Filter{TargetPidType: "swhid"}, 1},
		{"conjunction", filter.Filter{Datasource: "crossref", TargetPidType: "doi"}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			j := newJoiner(t, c.filter)
			links := runLines(t, j, relationshipsJSON)
			assert.Len(t, links, c.want)
		})
	}
}

func TestJoinerInvalid(t *testing.T) {
	j := newJoiner(t, filter.Filter{})
	f := j.ProcessFunc(context.Background())
	_, err := f([]byte(`{"targetId":"e1"}`))
	assert.ErrorIs(t, err, dump.ErrMissingSource)
	_, err = f([]byte(`{not json`))
	assert.Error(t, err)

	j.SkipInvalid = true
	b, err := f([]byte(`{"sourceId":"e1"}`))
	assert.NoError(t, err)
	assert.Nil(t, b)
	assert.Equal(t, int64(1), j.Stats().Invalid)
}

func TestJoinedProcessFunc(t *testing.T) {
	j := &Joiner{Filter: filter.Filter{Datasource: "crossref"}}
	f := j.JoinedProcessFunc()
	b, err := f([]byte(`{"s_title":"A","t_title":"B","linkProviders":["Crossref"],"relationType":"References"}`))
	require.NoError(t, err)
	var s scholix.Scholix
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, "A", s.Source.Title)
	assert.Equal(t, "B", s.Target.Title)
	assert.Equal(t, "References", s.RelationshipType.Name)

	b, err = f([]byte(`{"linkProviders":["datacite"],"relationType":"References"}`))
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Equal(t, Stats{Read: 2, Filtered: 1, Written: 1}, j.Stats())
}

func writeDump(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "relationships"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "entities"), 0755))
	lines := strings.Split(strings.TrimSpace(entitiesJSON), "\n")
	// split entities over two files, the first without final newline
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entities", "part-00000.json"), []byte(lines[0]), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entities", "part-00001.json"), []byte(strings.Join(lines[1:], "\n")), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entities", "_SUCCESS"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relationships", "part-00000.json"), []byte(relationshipsJSON), 0644))
	return dir
}

func readOutput(t *testing.T, dir string) []string {
	t.Helper()
	files, err := xio.ListFiles(dir)
	require.NoError(t, err)
	var (
		o     xio.Opener
		lines []string
	)
	for _, f := range files {
		rc, err := o.Open(f)
		require.NoError(t, err)
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		require.NoError(t, scanner.Err())
		rc.Close()
	}
	sort.Strings(lines)
	return lines
}

func TestConvert(t *testing.T) {
	for _, kind := range []string{IndexMemory, IndexSQLite} {
		t.Run(kind, func(t *testing.T) {
			dumpDir := writeDump(t)
			target := filepath.Join(t.TempDir(), "scholix")
			opts := DefaultOptions(dumpDir, target)
			opts.IndexKind = kind
			opts.IndexDir = t.TempDir()
			opts.RecordsPerPart = 1
			opts.Workers = 2
			stats, err := Convert(context.Background(), opts)
			require.NoError(t, err)
			assert.Equal(t, Stats{Read: 3, Missing: 1, Written: 2, Entities: 3}, stats)

			parts, err := xio.ListFiles(target)
			require.NoError(t, err)
			assert.Len(t, parts, int((stats.Written+opts.RecordsPerPart-1)/opts.RecordsPerPart))

			lines := readOutput(t, target)
			require.Len(t, lines, 2)
			for _, line := range lines {
				var m map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(line), &m))
				assert.Nil(t, m["LicenseURL"])
				assert.Contains(t, m, "LinkProvider")
			}
			_, err = os.Stat(filepath.Join(target, xio.SuccessFile))
			assert.NoError(t, err)

			if kind == IndexSQLite {
				leftover, err := filepath.Glob(filepath.Join(opts.IndexDir, "scholix-entities-*"))
				require.NoError(t, err)
				assert.Empty(t, leftover)
			}
		})
	}
}

func TestConvertFilter(t *testing.T) {
	dumpDir := writeDump(t)
	target := filepath.Join(t.TempDir(), "scholix")
	opts := DefaultOptions(dumpDir, target)
	opts.Filter = filter.Filter{Relation: "issupplementedby"}
	stats, err := Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Written)
	assert.Equal(t, int64(2), stats.Filtered)
	lines := readOutput(t, target)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"Name":"IsSupplementedBy"`)
}

func TestConvertSinglePartPerRecord(t *testing.T) {
	dumpDir := writeDump(t)
	target := filepath.Join(t.TempDir(), "scholix")
	opts := DefaultOptions(dumpDir, target)
	opts.RecordsPerPart = 1
	opts.Workers = 1
	stats, err := Convert(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Written)
	parts, err := xio.ListFiles(target)
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestConvertFailureLeavesNoSuccessFile(t *testing.T) {
	dumpDir := writeDump(t)
	rels := relationshipsJSON + `{"targetId":"e1","relationType":"cites"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dumpDir, "relationships", "part-00000.json"), []byte(rels), 0644))
	target := filepath.Join(t.TempDir(), "scholix")
	opts := DefaultOptions(dumpDir, target)
	opts.Workers = 1
	_, err := Convert(context.Background(), opts)
	assert.ErrorIs(t, err, dump.ErrMissingSource)
	_, err = os.Stat(filepath.Join(target, xio.SuccessFile))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertUnknownIndex(t *testing.T) {
	opts := DefaultOptions(writeDump(t), filepath.Join(t.TempDir(), "out"))
	opts.IndexKind = "redis"
	_, err := Convert(context.Background(), opts)
	assert.Error(t, err)
}
