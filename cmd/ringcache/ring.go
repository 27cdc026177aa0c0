package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IvanBrykalov/ringcache/ring"
)

var ringCmd = &cobra.Command{
	Use:   "ring",
	Short: "Report how keys spread over the configured nodes",
	Long: `Place a sample of keys on a ring built from --nodes and --vnodes and
print each node's share, the distribution quality and the fraction of keys
that change owner when one more node joins.`,
	RunE: runRing,
}

func init() {
	key := "sample"
	ringCmd.Flags().Int(key, 100_000, wrapString("Number of sample keys"))
	key = "json"
	ringCmd.Flags().Bool(key, false, wrapString("Print the report as JSON"))
}

// ringReport is the output of the ring command.
type ringReport struct {
	Nodes        []string       `json:"nodes"`
	VirtualNodes int            `json:"virtual_nodes"`
	Sample       int            `json:"sample"`
	Load         ring.LoadStats `json:"load"`
	// MovedOnJoin is the fraction of keys that change owner when JoinNode joins.
	MovedOnJoin float64 `json:"moved_on_join"`
	JoinNode    string  `json:"join_node"`
}

// buildRingReport places sample keys on a ring of nodes and measures the
// effect of one extra node joining.
func buildRingReport(nodes []string, vnodes, sample int) (*ringReport, error) {
	if len(nodes) == 0 {
		return nil, errors.New("ring needs at least one node")
	}
	r := ring.New(vnodes)
	for _, n := range nodes {
		if err := r.AddNode(n); err != nil {
			return nil, err
		}
	}
	keys := make([]string, sample)
	for i := range keys {
		keys[i] = "k:" + strconv.Itoa(i)
	}

	join := fmt.Sprintf("node-%d", len(nodes)+1)
	for r.Has(join) {
		join += "+"
	}
	grown := r.Clone()
	if err := grown.AddNode(join); err != nil {
		return nil, err
	}

	return &ringReport{
		Nodes:        r.Nodes(),
		VirtualNodes: r.VirtualNodes(),
		Sample:       sample,
		Load:         r.Distribution(keys),
		MovedOnJoin:  ring.Moved(r, grown, keys),
		JoinNode:     join,
	}, nil
}

func runRing(cmd *cobra.Command, _ []string) error {
	conf, err := processConfig(cmd)
	if err != nil {
		return err
	}
	sample := viper.GetInt("sample")
	if sample <= 0 {
		return fmt.Errorf("sample must be > 0, got %d", sample)
	}
	rep, err := buildRingReport(conf.Nodes, conf.VirtualNodes, sample)
	if err != nil {
		return err
	}

	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("nodes=%d vnodes=%d sample=%d\n", len(rep.Nodes), rep.VirtualNodes, rep.Sample)
	for _, n := range rep.Nodes {
		c := rep.Load.Keys[n]
		fmt.Printf("  %-16s %8d keys  %6.2f%%\n", n, c, float64(c)/float64(sample)*100)
	}
	fmt.Printf("std-dev=%.1f min/max=%.3f quality=%.3f\n",
		rep.Load.StdDeviation, rep.Load.MinMaxRatio, rep.Load.Quality)
	fmt.Printf("joining %s moves %.2f%% of keys (ideal %.2f%%)\n",
		rep.JoinNode, rep.MovedOnJoin*100, 100/float64(len(rep.Nodes)+1))
	return nil
}
