package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/checker"
)

var (
	checkDB     string
	checkAs     string
	checkClaims string
	checkJWT    string
	checkParams map[string]string
	checkDBRole string
)

var checkCmd = &cobra.Command{
	Use:   "check <table> <action>",
	Short: "Evaluate authorize() for a role against the database",
	Long: `Evaluate the installed authorize() function the way a policy would.

The check assumes the policy role, sets request.jwt.claims and calls
authorize() with the given $-parameters inside a transaction that is rolled
back. Exits with status 5 when access is denied.

Claims are built from --jwt (verified when check.jwt_secret is configured),
then --claims, then --as, later sources overriding earlier ones.`,
	Example: `  # May a member read projects of organization 1?
  easyrls check projects select --as member \
    --claims '{"organization_id": 1}' --param '$organization_id=1'

  # Use the claims of a real access token
  easyrls check projects delete --jwt "$TOKEN" --param '$organization_id=1'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := parseAction(args[1])
		if err != nil {
			return err
		}
		req, err := checkRequest(args[0], action, cfg.Check.JWTSecret)
		if err != nil {
			return err
		}

		dsn, err := resolveDSN(checkDB)
		if err != nil {
			return err
		}
		ctx := context.Background()
		db, err := openDB(ctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		role := resolveString(checkDBRole, cfg.Check.DBRole, checker.DefaultRole)
		allowed, err := checker.New(db, checker.WithRole(role)).Check(ctx, req)
		if err != nil {
			return cli.GeneralError("evaluating authorize()", err)
		}
		if !allowed {
			fmt.Println("deny")
			return cli.DeniedError(fmt.Sprintf("%s on %s denied", action, req.Resource))
		}
		fmt.Println("allow")
		return nil
	},
}

// checkRequest builds the request from the command flags.
func checkRequest(table string, action easyrls.Action, jwtSecret string) (checker.Request, error) {
	claims := map[string]any{}
	if checkJWT != "" {
		fromToken, err := checker.ClaimsFromToken(checkJWT, []byte(jwtSecret))
		if err != nil {
			return checker.Request{}, cli.GeneralError("reading --jwt", err)
		}
		claims = fromToken
	}
	if checkClaims != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(checkClaims), &extra); err != nil {
			return checker.Request{}, cli.GeneralError("parsing --claims", err)
		}
		for k, v := range extra {
			claims[k] = v
		}
	}
	if checkAs != "" {
		claims["user_role"] = checkAs
	}

	params := make(map[string]any, len(checkParams))
	for k, v := range checkParams {
		params[k] = v
	}
	return checker.Request{Claims: claims, Resource: table, Action: action, Params: params}, nil
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkDB, "db", "", "database URL (default: config)")
	f.StringVar(&checkAs, "as", "", "application role placed in the user_role claim")
	f.StringVar(&checkClaims, "claims", "", "JWT claims as a JSON object")
	f.StringVar(&checkJWT, "jwt", "", "access token whose claims are used")
	f.StringToStringVar(&checkParams, "param", nil, "policy parameter as $name=value (repeatable)")
	f.StringVar(&checkDBRole, "db-role", "", "database role assumed during the check (default: config or authenticated)")
}
