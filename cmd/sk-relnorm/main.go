// sk-relnorm shows how raw relation types map to Scholix relationship names.
//
// $ printf "IsSupplementTo\ncites\n" | sk-relnorm
// IsSupplementTo	IsSupplementTo
// cites	IsRelatedTo
//
// With -r, read relationships JSON lines and use their relation type.
package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"

	"github.com/miku/scholixdump/convert"
	"github.com/miku/scholixdump/pproc"
	"github.com/miku/scholixdump/schema/dump"
	"github.com/segmentio/encoding/json"
)

var (
	fromRelationships = flag.Bool("r", false, "input is relationships JSON lines")
	numWorkers        = flag.Int("w", 4, "number of workers")
)

func normalizeLine(p []byte) ([]byte, error) {
	raw := string(p)
	if *fromRelationships {
		var rel dump.Relationship
		if err := json.Unmarshal(p, &rel); err != nil {
			return nil, err
		}
		raw = rel.RelationType
	}
	var buf bytes.Buffer
	buf.WriteString(raw)
	buf.WriteByte('\t')
	buf.WriteString(convert.NormalizeRelationType(raw))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func main() {
	flag.Parse()
	pp := pproc.NewProcessor(normalizeLine, pproc.WithWorkers(*numWorkers))
	if err := pp.Process(context.Background(), os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
