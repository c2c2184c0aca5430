package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/graceinfra/ibmisteps/internal/config"
	"github.com/graceinfra/ibmisteps/internal/templates"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/graceinfra/ibmisteps/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [workspace-name]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Scaffold a new ibmisteps workspace",
	Long: `Initialize a new workspace by scaffolding:
  - an ibmisteps.yml file describing your IBM i server
  - a starter pipeline.yml
  - a .ibmisteps/ directory for run logs

An interactive form collects the server name, host, user profile and password.
The password is stored in the OS keyring, never in the workspace. Leave it
empty to read it from IBMISTEPS_PASSWORD_<SERVER> at run time instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		workspaceArg := ""
		if len(args) > 0 {
			workspaceArg = args[0]
		}

		answers, canceled := RunInitTUI(workspaceArg)
		if canceled {
			fmt.Println("✖ ibmisteps init canceled.")
			return
		}

		targetDir := answers.WorkspaceName
		workspaceName := answers.WorkspaceName
		if workspaceName == "." {
			cwd, _ := os.Getwd()
			workspaceName = filepath.Base(cwd)
		}

		if targetDir != "." {
			cobra.CheckErr(utils.MustNotExist(targetDir))
			cobra.CheckErr(os.MkdirAll(targetDir, 0755))
		}

		fmt.Printf("↪ scaffolding new workspace %q ...\n", workspaceName)

		cobra.CheckErr(utils.MustNotExist(filepath.Join(targetDir, ".ibmisteps")))
		cobra.CheckErr(utils.MkDir(targetDir, ".ibmisteps", "logs"))

		server := &types.Server{
			Name:        answers.ServerName,
			Host:        answers.Host,
			User:        answers.User,
			Credentials: types.CredentialsKeyring,
		}
		if server.Host != "" && answers.Password == "" {
			server.Credentials = types.CredentialsEnv
		}
		if err := config.ValidateServers(&types.ServersConfig{Servers: []*types.Server{server}}); err != nil {
			cobra.CheckErr(err)
		}

		data := templates.ScaffoldData{
			WorkspaceName: workspaceName,
			ServerName:    server.Name,
			Host:          server.Host,
			User:          server.User,
			Credentials:   server.Credentials,
			Library:       templates.LibraryName(workspaceName),
		}

		files := map[string]string{
			"files/ibmisteps.yml.tmpl": config.DefaultServersFile,
			"files/pipeline.yml.tmpl":  config.DefaultPipelineFile,
		}
		for tplPath, outName := range files {
			outPath := filepath.Join(targetDir, outName)
			cobra.CheckErr(utils.MustNotExist(outPath))
			cobra.CheckErr(templates.WriteTpl(tplPath, outPath, data))
		}

		switch {
		case server.Host == "":
		case answers.Password != "":
			ring, err := config.OpenKeyring()
			cobra.CheckErr(err)
			cobra.CheckErr(config.StorePassword(ring, server, answers.Password))
			fmt.Printf("✓ password for %s stored in the OS keyring\n", server.User)
		default:
			fmt.Printf("↪ set %s before running pipelines\n", config.PasswordEnv(server))
		}

		fmt.Printf("✓ workspace %q initialized!\n", workspaceName)
	},
}
