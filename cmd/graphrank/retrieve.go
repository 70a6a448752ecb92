package graphrank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/graphrank"
	"github.com/soundprediction/graphrank/pkg/config"
	"github.com/soundprediction/graphrank/pkg/types"
	"github.com/soundprediction/graphrank/pkg/weighting"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Run a single retrieval against the graph",
	Long: `Run one retrieval cycle against the configured graph store and print
the ranked evidence as JSON.

Seed candidates are passed as name or name:tier pairs, where tier is one of
entity, structural, or thematic. When sub-questions are given the query runs
as a multi-hop retrieval instead.

Examples:
  graphrank retrieve "what are the payment terms" --group-id tenant-a
  graphrank retrieve "supplier risks" --group-id tenant-a --candidate "Acme Corp:entity"
  graphrank retrieve "how are these linked" --group-id tenant-a \
    --sub-question "who supplies the part" --sub-question "who buys the product"`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

var (
	retrieveGroupID      string
	retrieveCandidates   []string
	retrieveSubQuestions []string
	retrieveProfile      string
	retrieveTimeout      int
)

func init() {
	rootCmd.AddCommand(retrieveCmd)

	retrieveCmd.Flags().StringVar(&retrieveGroupID, "group-id", "", "Tenant group id (required)")
	retrieveCmd.Flags().StringSliceVar(&retrieveCandidates, "candidate", nil, "Seed candidate as name or name:tier")
	retrieveCmd.Flags().StringSliceVar(&retrieveSubQuestions, "sub-question", nil, "Sub-question for multi-hop retrieval")
	retrieveCmd.Flags().StringVar(&retrieveProfile, "profile", "", "Tier weight profile (fact_lookup, thematic_survey, multi_hop, auto)")
	retrieveCmd.Flags().IntVar(&retrieveTimeout, "timeout", 60, "Overall timeout in seconds")

	retrieveCmd.MarkFlagRequired("group-id")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if retrieveProfile != "" {
		cfg.Retrieval.Profile = retrieveProfile
	}

	candidates, err := parseCandidates(retrieveCandidates)
	if err != nil {
		return err
	}

	engine, errorSink, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(retrieveTimeout)*time.Second)
	defer cancel()
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := engine.Close(closeCtx); err != nil {
			fmt.Printf("Warning: engine close error: %v\n", err)
		}
		if errorSink != nil {
			if err := errorSink.Flush(); err != nil {
				fmt.Printf("Warning: telemetry flush error: %v\n", err)
			}
		}
	}()

	var output interface{}
	if len(retrieveSubQuestions) > 0 {
		result, err := engine.MultiHopRetrieve(ctx, graphrank.MultiHopRequest{
			Query:        query,
			GroupID:      retrieveGroupID,
			Candidates:   candidates,
			SubQuestions: retrieveSubQuestions,
		})
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		output = result
	} else {
		result, err := engine.Retrieve(ctx, graphrank.RetrieveRequest{
			Query:      query,
			GroupID:    retrieveGroupID,
			Candidates: candidates,
			Profile:    weighting.Profile(cfg.Retrieval.Profile),
		})
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		output = result
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// parseCandidates turns name:tier flag values into seed candidates. A bare
// name defaults to the entity tier.
func parseCandidates(values []string) ([]types.SeedCandidate, error) {
	candidates := make([]types.SeedCandidate, 0, len(values))
	for _, value := range values {
		name := value
		tier := types.TierEntity
		if idx := strings.LastIndex(value, ":"); idx >= 0 {
			name = value[:idx]
			switch value[idx+1:] {
			case "entity":
				tier = types.TierEntity
			case "structural":
				tier = types.TierStructural
			case "thematic":
				tier = types.TierThematic
			default:
				return nil, fmt.Errorf("unknown tier %q in candidate %q", value[idx+1:], value)
			}
		}
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("empty candidate name in %q", value)
		}
		candidates = append(candidates, types.SeedCandidate{Name: name, Tier: tier, Confidence: 1.0})
	}
	return candidates, nil
}
