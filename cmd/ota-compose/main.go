// Command ota-compose is the CLI surface spec.md section 6.4 describes
// minimally: flag parsing and wiring of the external collaborators
// (binary diff, whole-archive signing, device extension hook) around the
// OTA composition engine in internal/compose. Grounded on the teacher's
// cmd/ layout and its github.com/spf13/cobra dependency.
package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/ota-composer/internal/compose"
	"github.com/osbuild/ota-composer/internal/config"
	"github.com/osbuild/ota-composer/internal/deviceext"
	"github.com/osbuild/ota-composer/internal/otazip"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

type options struct {
	profilePath     string
	packageKey      string
	incrementalFrom string
	wipeUserData    bool
	noPrereq        bool
	extraScript     string
	aslrMode        string
	workerThreads   int
	intelOTA        bool
	diffBinary      string
	signBinary      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ota-compose TARGET_FILES OUTPUT",
		Short: "Compose a signed OTA update package from a target-files archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], args[1])
		},
	}
	cmd.SilenceUsage = true

	flags := cmd.Flags()
	flags.StringVar(&opts.profilePath, "device_profile", "", "device profile TOML path (empty: built-in default profile)")
	flags.StringVarP(&opts.packageKey, "package_key", "k", "", "signing key name")
	flags.StringVarP(&opts.incrementalFrom, "incremental_from", "i", "", "source target-files archive for an incremental OTA")
	flags.BoolVarP(&opts.wipeUserData, "wipe_user_data", "w", false, "wipe /data during installation")
	flags.BoolVarP(&opts.noPrereq, "no_prereq", "n", false, "omit the assert_older_build prerequisite check")
	flags.StringVarP(&opts.extraScript, "extra_script", "e", "", "path to extra script text appended near the end of the script")
	flags.StringVarP(&opts.aslrMode, "aslr_mode", "a", "", "on|off: ASLR retouch gate")
	flags.IntVar(&opts.workerThreads, "worker_threads", 0, "diff-planner worker pool size (0: profile default)")
	flags.BoolVar(&opts.intelOTA, "intel_ota", false, "enable chaabi/IFWI/partitioning primitives")
	flags.BoolP("b", "b", false, "accepted and ignored, for compatibility")
	flags.StringVar(&opts.diffBinary, "diff_binary", "bsdiff", "binary-diff helper invoked as <bin> <source> <target> <patch>")
	flags.StringVar(&opts.signBinary, "sign_binary", "sign_whole_archive", "signing helper invoked as <bin> <archive> <key>, passphrase on stdin")

	return cmd
}

// rollbackForcesNoPrereq reports whether OTA_ROLLBACK=off is set, which
// spec.md section 6.4 says forces no_prereq=true regardless of the
// -n/--no_prereq flag.
func rollbackForcesNoPrereq() bool {
	return os.Getenv("OTA_ROLLBACK") == "off"
}

// applyASLRMode validates and applies -a/--aslr_mode onto profile. An
// empty mode leaves the profile's own (TOML-configured) gate untouched.
func applyASLRMode(mode string, profile *config.Profile) error {
	switch mode {
	case "on":
		profile.EmitASLRRetouch = true
	case "off":
		profile.EmitASLRRetouch = false
	case "":
	default:
		return fmt.Errorf("invalid --aslr_mode %q: must be \"on\" or \"off\"", mode)
	}
	return nil
}

func run(ctx context.Context, opts *options, targetPath, outputPath string) error {
	if rollbackForcesNoPrereq() {
		opts.noPrereq = true
	}

	profile := config.DefaultProfile()
	if opts.profilePath != "" {
		var err error
		profile, err = config.LoadProfile(opts.profilePath)
		if err != nil {
			return err
		}
	}
	if opts.workerThreads > 0 {
		profile.WorkerThreads = opts.workerThreads
	}
	if opts.intelOTA {
		profile.ChaabiTokenRequired = true
		profile.DoPartitioning = true
		profile.BiosType = "iafw"
	}
	if err := applyASLRMode(opts.aslrMode, &profile); err != nil {
		return err
	}

	target, err := openArchive(targetPath)
	if err != nil {
		return fmt.Errorf("open target archive: %w", err)
	}

	req := compose.Request{
		Mode:          compose.Full,
		Target:        target,
		Profile:       profile,
		PatchComputer: externalPatchComputer{binary: opts.diffBinary},
		FSConfig:      compose.ArchiveFSConfig{},
		WipeUserData:  opts.wipeUserData,
		NoPrereq:      opts.noPrereq,
	}
	if profile.ExtensionsHook != "" {
		req.Hook = deviceext.ExternalHook{Ctx: ctx, Path: profile.ExtensionsHook}
	}
	if opts.extraScript != "" {
		extra, err := os.ReadFile(opts.extraScript)
		if err != nil {
			return fmt.Errorf("read extra_script: %w", err)
		}
		req.ExtraScriptText = string(extra)
	}

	if opts.incrementalFrom != "" {
		source, err := openArchive(opts.incrementalFrom)
		if err != nil {
			return fmt.Errorf("open incremental_from archive: %w", err)
		}
		req.Mode = compose.Incremental
		req.Source = source
	}

	var result *compose.Result
	buildErr := otazip.Assemble(ctx, outputPath, externalSigner{binary: opts.signBinary}, envPassphraseSource{}, opts.packageKey, func(w *otazip.Writer) error {
		result, err = compose.Compose(ctx, req, w)
		if err != nil {
			return err
		}
		if err := w.WriteManifest(result.Manifest); err != nil {
			return err
		}
		scriptBytes, err := result.Script.Serialize()
		if err != nil {
			return fmt.Errorf("serialize installer script: %w", err)
		}
		return w.WriteEntry(otazip.ScriptPath, scriptBytes)
	})
	if buildErr != nil {
		return buildErr
	}

	if result.Warnings != nil {
		for _, w := range result.Warnings.Errors {
			logrus.Warn(w)
		}
	}
	return nil
}

func openArchive(path string) (*targetfiles.Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return targetfiles.Open(r), nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
