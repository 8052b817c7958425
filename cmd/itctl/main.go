// itctl submits experiments, registers environments and deploys model
// services from the project's pipeline configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/equinor/interface-tools/pkg/config"
	"github.com/equinor/interface-tools/pkg/logging"
	"github.com/equinor/interface-tools/pkg/platform"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logging.Default()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		log.SetLevel(logging.ParseLevel(level))
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runExperiment(os.Args[2:])
	case "register-env":
		err = registerEnvironment(os.Args[2:])
	case "deploy":
		err = deployService(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: itctl <run|register-env|deploy> [flags]")
}

func openWorkspace() (*platform.Workspace, error) {
	cfg, err := config.GetPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project config: %w", err)
	}
	return platform.FromConfig(cfg)
}

func runExperiment(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	name := fs.String("name", "", "experiment name")
	script := fs.String("script", "", "training entry point relative to the source directory")
	source := fs.String("source", ".", "project source directory")
	envName := fs.String("environment", "", "runtime environment name")
	image := fs.String("image", "", "docker base image for new environments")
	cluster := fs.String("cluster", "", "compute pool name; empty runs without a pool selector")
	register := fs.Bool("register", false, "register the run's model artifact")
	fs.Parse(args)

	if *name == "" || *script == "" || *envName == "" {
		return fmt.Errorf("name, script and environment are required")
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	exp := platform.NewExperiment(ws, platform.ExperimentSpec{
		Name:            *name,
		Script:          *script,
		SourceDirectory: *source,
		EnvironmentName: *envName,
		DockerBaseImage: *image,
		RunLocal:        *cluster == "",
		ClusterName:     *cluster,
	})

	run, err := exp.Run(context.Background(), nil)
	if err != nil {
		return err
	}
	fmt.Printf("run %s %s\n", run.ID, run.Status)

	if *register {
		model, err := exp.RegisterModel(nil)
		if err != nil {
			return err
		}
		fmt.Printf("model %s v%d\n", model.Name, model.Version)
	}
	return nil
}

func registerEnvironment(args []string) error {
	fs := flag.NewFlagSet("register-env", flag.ExitOnError)
	name := fs.String("name", "", "environment name")
	image := fs.String("image", "", "docker base image")
	fs.Parse(args)

	if *name == "" || *image == "" {
		return fmt.Errorf("name and image are required")
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	env, err := ws.RegisterEnvironment(*name, *image, nil)
	if err != nil {
		return err
	}
	fmt.Printf("environment %s (%s)\n", env.Name, env.Image)
	return nil
}

func deployService(args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	name := fs.String("name", "", "service name")
	experiment := fs.String("experiment", "", "experiment whose model to deploy")
	target := fs.String("target", string(platform.TargetLocal), "deployment target (local, cluster, edge)")
	image := fs.String("image", "", "inference image")
	port := fs.Int("port", 0, "service port")
	fs.Parse(args)

	if *name == "" || *experiment == "" {
		return fmt.Errorf("name and experiment are required")
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	exp := platform.NewExperiment(ws, platform.ExperimentSpec{Name: *experiment})
	if err := exp.AttachModel(*experiment); err != nil {
		return err
	}

	handle, err := exp.Deploy(context.Background(), platform.DeploymentSpec{
		Name:           *name,
		Target:         platform.DeploymentTarget(*target),
		InferenceImage: *image,
		Port:           int32(*port),
	})
	if err != nil {
		return err
	}
	fmt.Printf("service %s/%s port %d model %s\n", handle.Namespace, handle.Name, handle.Port, handle.ModelName)
	return nil
}
