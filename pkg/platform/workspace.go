// Package platform is the interface layer to the ML workspace: experiment
// submission, environment and model registration, and service deployment.
// Compute is delegated to Kubernetes; registration goes through the
// workspace registry.
package platform

import (
	"fmt"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/equinor/interface-tools/pkg/artifact"
	"github.com/equinor/interface-tools/pkg/config"
	"github.com/equinor/interface-tools/pkg/logging"
	"github.com/equinor/interface-tools/pkg/registry"
)

const defaultRegistryDir = ".registry"

// Workspace is the handle to the ML workspace. It owns the registry
// connection and a lazily created Kubernetes clientset.
type Workspace struct {
	registry  *registry.Registry
	clientset kubernetes.Interface
	namespace string
	log       *logging.Logger
}

// FromConfig opens a workspace from the resolved project config. The
// registry directory comes from the base config's registry_dir field
// (default .registry under the project root); the Kubernetes namespace
// from kubernetes_namespace (default "default"). The Kubernetes clientset
// is not created until compute is first needed.
func FromConfig(cfg *config.ProjectConfig) (*Workspace, error) {
	registryDir := filepath.Join(cfg.RootDir, defaultRegistryDir)
	if dir, ok := cfg.Base["registry_dir"].(string); ok && dir != "" {
		if filepath.IsAbs(dir) {
			registryDir = dir
		} else {
			registryDir = filepath.Join(cfg.RootDir, dir)
		}
	}

	reg, err := registry.Open(registryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace registry: %w", err)
	}

	namespace := "default"
	if ns, ok := cfg.Base["kubernetes_namespace"].(string); ok && ns != "" {
		namespace = ns
	}

	return &Workspace{
		registry:  reg,
		namespace: namespace,
		log:       logging.Default().WithComponent("platform"),
	}, nil
}

// NewWorkspace creates a workspace around existing handles. Tests use
// this with a fake clientset.
func NewWorkspace(reg *registry.Registry, clientset kubernetes.Interface, namespace string) *Workspace {
	if namespace == "" {
		namespace = "default"
	}
	return &Workspace{
		registry:  reg,
		clientset: clientset,
		namespace: namespace,
		log:       logging.Default().WithComponent("platform"),
	}
}

// Registry returns the workspace registry
func (w *Workspace) Registry() *registry.Registry {
	return w.registry
}

// Close releases the registry connection
func (w *Workspace) Close() error {
	return w.registry.Close()
}

// DatasetConnector returns a connect function for the artifact handler's
// remote dataset backend.
func (w *Workspace) DatasetConnector() artifact.ConnectFunc {
	return func() (artifact.DatasetRegistry, error) {
		return w.registry, nil
	}
}

// EnsureEnvironment registers the named runtime environment if it does
// not exist yet and returns it. An existing environment is returned
// unchanged, mirroring get-or-create semantics.
func (w *Workspace) EnsureEnvironment(name, image string, envVars map[string]string) (*registry.Environment, error) {
	env, err := w.registry.GetEnvironment(name)
	if err == nil {
		return env, nil
	}
	env = &registry.Environment{Name: name, Image: image, EnvVars: envVars}
	if err := w.registry.SaveEnvironment(env); err != nil {
		return nil, fmt.Errorf("failed to register environment %q: %w", name, err)
	}
	w.log.Info("registered environment", logging.String("name", name), logging.String("image", image))
	return env, nil
}

// RegisterEnvironment creates or replaces the named runtime environment
func (w *Workspace) RegisterEnvironment(name, image string, envVars map[string]string) (*registry.Environment, error) {
	env := &registry.Environment{Name: name, Image: image, EnvVars: envVars}
	if err := w.registry.SaveEnvironment(env); err != nil {
		return nil, fmt.Errorf("failed to register environment %q: %w", name, err)
	}
	w.log.Info("registered environment", logging.String("name", name), logging.String("image", image))
	return env, nil
}

// clients returns the Kubernetes clientset, creating it on first use
func (w *Workspace) clients() (kubernetes.Interface, error) {
	if w.clientset != nil {
		return w.clientset, nil
	}
	cfg, err := getKubeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	w.clientset = clientset
	return w.clientset, nil
}

// getKubeConfig returns the Kubernetes configuration, preferring the
// in-cluster config and falling back to the local kubeconfig file.
func getKubeConfig() (*rest.Config, error) {
	cfg, err := rest.InClusterConfig()
	if err == nil {
		return cfg, nil
	}

	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
