package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/dbml"
	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
	"github.com/skyiron/chartdbDiagramsSQL/internal/reconcile"
	"github.com/skyiron/chartdbDiagramsSQL/internal/utils"
)

var (
	dialectName  string
	outputFile   string
	tokenSecret  string
	tokenSubject string
	tokenTTL     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dbmlctl",
	Short: "Validate, format, diff and export DBML schema scripts",
}

var validateCmd = &cobra.Command{
	Use:   "validate <file.dbml>",
	Short: "Parse a DBML file and report the first syntax error",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <file.dbml>",
	Short: "Rewrite a DBML file in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE:  runFmt,
}

var diffCmd = &cobra.Command{
	Use:   "diff <old.dbml> <new.dbml>",
	Short: "Print the operations that turn one DBML schema into another",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var exportCmd = &cobra.Command{
	Use:   "export <file.dbml>",
	Short: "Render a DBML file as SQL DDL",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dialectName, "dialect", "postgres", "SQL dialect: postgres, mysql or mssql")
	fmtCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Signing secret (default: ACCESS_TOKEN_SECRET env)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "dbmlctl", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(validateCmd, fmtCmd, diffCmd, exportCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseDialect() (dbml.Dialect, error) {
	switch dialectName {
	case "postgres":
		return dbml.DialectPostgres, nil
	case "mysql":
		return dbml.DialectMySQL, nil
	case "mssql":
		return dbml.DialectMSSQL, nil
	default:
		return "", fmt.Errorf("invalid dialect %q, must be one of: postgres, mysql, mssql", dialectName)
	}
}

func importFile(path string, dialect dbml.Dialect) (*dbml.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := dbml.Import(string(data), dialect)
	if err != nil {
		var perr *dbml.ParseError
		if errors.As(err, &perr) && perr.Localized() {
			return nil, fmt.Errorf("%s:%d:%d: %s", path, perr.Line, perr.Column, perr.Message)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// diagramFromImport materializes an imported schema as a standalone
// diagram, the same way a freshly created diagram is seeded.
func diagramFromImport(schema *dbml.Schema) *models.Diagram {
	tableChanges := reconcile.Tables(nil, schema.Tables)
	relChanges := reconcile.Relationships(reconcile.RelationshipInput{
		Tables:   tableChanges,
		Imported: schema,
		Logger:   zap.NewNop(),
	})
	return &models.Diagram{
		Tables:        reconcile.MergeTables(nil, tableChanges),
		Relationships: reconcile.MergeRelationships(nil, relChanges),
	}
}

func writeOutput(text string) error {
	if outputFile == "" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(outputFile, []byte(text), 0o644)
}

func runValidate(cmd *cobra.Command, args []string) error {
	dialect, err := parseDialect()
	if err != nil {
		return err
	}
	schema, err := importFile(args[0], dialect)
	if err != nil {
		return err
	}
	fmt.Printf("%s: OK (%d tables, %d refs)\n", args[0], len(schema.Tables), len(schema.Refs))
	return nil
}

func runFmt(cmd *cobra.Command, args []string) error {
	dialect, err := parseDialect()
	if err != nil {
		return err
	}
	schema, err := importFile(args[0], dialect)
	if err != nil {
		return err
	}
	text, err := dbml.Generate(diagramFromImport(schema), dbml.GenerateOptions{Dialect: dialect})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return writeOutput(text)
}

func runDiff(cmd *cobra.Command, args []string) error {
	dialect, err := parseDialect()
	if err != nil {
		return err
	}
	oldSchema, err := importFile(args[0], dialect)
	if err != nil {
		return err
	}
	newSchema, err := importFile(args[1], dialect)
	if err != nil {
		return err
	}

	current := diagramFromImport(oldSchema)
	tableChanges := reconcile.Tables(current.Tables, newSchema.Tables)
	relChanges := reconcile.Relationships(reconcile.RelationshipInput{
		Current:       current.Relationships,
		CurrentTables: current.Tables,
		Tables:        tableChanges,
		Imported:      newSchema,
		Logger:        zap.NewNop(),
	})

	if tableChanges.Empty() && len(relChanges.Add) == 0 && len(relChanges.Remove) == 0 {
		fmt.Println("no changes")
		return nil
	}

	for _, t := range tableChanges.Remove {
		fmt.Printf("- table %s\n", t.Key())
	}
	for _, rel := range relChanges.Remove {
		fmt.Printf("- ref %s\n", rel.Name)
	}
	for _, t := range tableChanges.Update {
		fmt.Printf("~ table %s\n", t.Key())
	}
	for _, t := range tableChanges.Add {
		fmt.Printf("+ table %s\n", t.Key())
	}
	for _, rel := range relChanges.Add {
		fmt.Printf("+ ref %s\n", rel.Name)
	}
	fmt.Printf("%d tables removed, %d kept, %d added; %d refs removed, %d added\n",
		len(tableChanges.Remove), len(tableChanges.Update), len(tableChanges.Add),
		len(relChanges.Remove), len(relChanges.Add))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	dialect, err := parseDialect()
	if err != nil {
		return err
	}
	schema, err := importFile(args[0], dialect)
	if err != nil {
		return err
	}
	script, err := dbml.ExportDDL(diagramFromImport(schema), dialect)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return writeOutput(script)
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := tokenSecret
	if secret == "" {
		secret = os.Getenv("ACCESS_TOKEN_SECRET")
	}
	if secret == "" {
		return fmt.Errorf("signing secret required: --secret or ACCESS_TOKEN_SECRET")
	}
	token, err := utils.GenerateAccessToken([]byte(secret), tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
