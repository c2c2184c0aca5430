package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99designs/keyring"
	"github.com/google/uuid"
	"github.com/graceinfra/ibmisteps/internal/config"
	"github.com/graceinfra/ibmisteps/internal/console"
	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/host/pase"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/runner"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func outputStyle() types.OutputStyle {
	switch {
	case wantJSON:
		return types.StyleMachineJSON
	case Verbose:
		return types.StyleHumanVerbose
	default:
		return types.StyleHuman
	}
}

// applyFlags lets --server, --iasp and --trace override the pipeline file.
func applyFlags(p *types.Pipeline, servers *types.ServersConfig) {
	if serverFlag != "" {
		p.Server = serverFlag
	}
	if p.Server == "" && len(servers.Servers) == 1 {
		p.Server = servers.Servers[0].Name
	}
	if iaspFlag != "" {
		p.IASP = iaspFlag
	}
	p.Trace = p.Trace || traceFlag
}

// newExecutionContext validates p against the servers file, resolves the
// target's credentials and returns a context ready to open a session.
func newExecutionContext(cmdName string, p *types.Pipeline) (*execctx.ExecutionContext, error) {
	servers, err := config.LoadServers(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(p, servers)

	if err := config.ValidatePipeline(p, servers, GetDependencies().Registry); err != nil {
		return nil, err
	}
	server, _ := servers.Find(p.Server)

	var ring keyring.Keyring
	if server.Host != "" && server.Credentials != types.CredentialsEnv {
		if ring, err = config.OpenKeyring(); err != nil {
			return nil, err
		}
	}
	opts, err := config.Resolve(server, ring, nil)
	if err != nil {
		return nil, err
	}
	opts.Trace = p.Trace

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	return &execctx.ExecutionContext{
		RunID:        uuid.New(),
		RunStartTime: time.Now(),
		Command:      cmdName,
		Pipeline:     p,
		Server:       server,
		WorkDir:      workDir,
		Dialer:       pase.Dialer{},
		Options:      opts,
		Console:      console.New(outputStyle()),
	}, nil
}

// signalContext is cancelled on Ctrl-C so a waiting step stops promptly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runSingleStep runs one step built from command line flags and prints its result.
func runSingleStep(step *types.Step) {
	p := &types.Pipeline{Steps: []*types.Step{step}}
	ec, err := newExecutionContext(step.Type, p)
	cobra.CheckErr(err)

	ctx, stop := signalContext()
	records, err := runner.New(ec, GetDependencies().Registry).Run(ctx)
	stop()
	ec.Close()
	cobra.CheckErr(err)

	record := records[0]
	if err := printRecord(ec.Console, record); err != nil {
		log.Warn().Err(err).Msg("Failed to print step result")
	}
	if record.Status != models.StatusSucceeded {
		if record.Error != "" {
			ec.Console.Error("%s", record.Error)
		}
		os.Exit(1)
	}
}

func printRecord(c *console.Console, record *models.StepExecutionRecord) error {
	switch {
	case record.CommandResult != nil:
		c.CommandResult(record.CommandResult)
	case record.SQLResult != nil:
		return c.SQLResult(record.SQLResult)
	case record.SpooledFiles != nil:
		return c.SpooledFiles(record.SpooledFiles)
	case record.SaveFile != nil:
		return c.SaveFile(record.SaveFile)
	case record.Shell != nil:
		c.Json(record.Shell)
		c.Info("%s", record.Shell.Output)
	case record.JobWait != "":
		c.Json(map[string]string{"job_wait": record.JobWait})
		c.Info("Job wait ended: %s", record.JobWait)
	case record.BytesMoved > 0:
		c.Json(map[string]int64{"bytes_moved": record.BytesMoved})
		c.Info("✓ %d byte(s) transferred", record.BytesMoved)
	}
	return nil
}
