package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kubiakdev/perms/pkg/perms"
)

func newClassifyCmd() *cobra.Command {
	var (
		grants    []string
		rationale []string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a permission result without a host",
		Long: `Classify sorts a raw result into accepted, denied and forever denied.

Pass one --grant per permission, in request order, as name=granted or
name=denied. --rationale name=false marks that the OS no longer offers a
rationale for a denied permission after the result, which makes it forever
denied. Denied permissions without --rationale count as rationale shown.`,
		Example: `  perms classify --grant CAMERA=granted --grant CALL_PHONE=denied --rationale CALL_PHONE=false`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			permissions, results, err := parseGrants(grants)
			if err != nil {
				return err
			}
			shown, err := parseRationale(rationale)
			if err != nil {
				return err
			}

			outcome, err := perms.Classify(permissions, results, nil, func(p string, _ bool) bool {
				show, ok := shown[p]
				return ok && !show
			})
			if err != nil {
				return err
			}
			return writeOutcome(cmd, outcome)
		},
	}

	cmd.Flags().StringArrayVarP(&grants, "grant", "g", nil, "permission result as name=granted|denied (repeatable, ordered)")
	cmd.Flags().StringArrayVarP(&rationale, "rationale", "r", nil, "rationale after the result as name=true|false (repeatable)")
	return cmd
}

func parseGrants(values []string) ([]string, []perms.Grant, error) {
	permissions := make([]string, 0, len(values))
	results := make([]perms.Grant, 0, len(values))
	for _, raw := range values {
		name, value, err := splitPair(raw)
		if err != nil {
			return nil, nil, err
		}
		switch strings.ToLower(value) {
		case "granted", "grant", "0":
			results = append(results, perms.Granted)
		case "denied", "deny", "-1":
			results = append(results, perms.Denied)
		default:
			return nil, nil, fmt.Errorf("invalid grant %q: want granted or denied", raw)
		}
		permissions = append(permissions, name)
	}
	return permissions, results, nil
}

func parseRationale(values []string) (map[string]bool, error) {
	shown := make(map[string]bool, len(values))
	for _, raw := range values {
		name, value, err := splitPair(raw)
		if err != nil {
			return nil, err
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid rationale %q: %w", raw, err)
		}
		shown[name] = b
	}
	return shown, nil
}

func splitPair(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid value %q: want name=value", raw)
	}
	return name, strings.TrimSpace(value), nil
}

func writeOutcome(cmd *cobra.Command, o perms.Outcome) error {
	result := "all accepted"
	if !o.AllAccepted() {
		result = "at least one denied"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "result: %s\naccepted: %s\ndenied: %s\nforever denied: %s\n",
		result, joinOrDash(o.Accepted), joinOrDash(o.Denied), joinOrDash(o.ForeverDenied))
	return err
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
