package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
)

// ListFingerprints prints one line per recorded write-set.
func ListFingerprints(ctx context.Context, opts RunOptions, w io.Writer) error {
	records, closer, err := loadFingerprints(ctx, opts)
	if err != nil {
		return err
	}
	defer closer()

	if len(records) == 0 {
		fmt.Fprintln(w, "No fingerprints recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WRITE-SET\tRECORDED\tOUTPUTS")
	for _, id := range slices.Sorted(maps.Keys(records)) {
		fp := records[id]
		var outs []string
		for _, o := range fp.Outputs {
			outs = append(outs, o.Path)
		}
		short := id[:min(12, len(id))]
		if i := strings.IndexByte(id, '.'); i > 0 {
			short += id[i:]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", short, fp.RecordedAt.Local().Format(time.DateTime), strings.Join(outs, " "))
	}
	return tw.Flush()
}

// ForgetFingerprints drops the records writing any of paths, or every
// record when paths is empty, so the next run re-executes those commands.
func ForgetFingerprints(ctx context.Context, opts RunOptions, paths []string) (int, error) {
	engine, closer, err := OpenEngine(opts)
	if err != nil {
		return 0, err
	}
	defer closer()

	store := engine.Store()
	records, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for id, fp := range records {
		if len(paths) == 0 || writes(fp, paths) {
			delete(records, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, store.Save(ctx, records)
}

func loadFingerprints(ctx context.Context, opts RunOptions) (map[string]domain.Fingerprint, func(), error) {
	engine, closer, err := OpenEngine(opts)
	if err != nil {
		return nil, nil, err
	}
	records, err := engine.Store().Load(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return records, closer, nil
}

func writes(fp domain.Fingerprint, paths []string) bool {
	for _, o := range fp.Outputs {
		if slices.Contains(paths, o.Path) {
			return true
		}
	}
	return false
}
