package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/equinor/interface-tools/pkg/logging"
	"github.com/equinor/interface-tools/pkg/registry"
)

const modelArtifactFile = "outputs/model.gob"

// ClusterConfig describes a compute pool for non-local runs
type ClusterConfig struct {
	CPURequest    string
	MemoryRequest string
	CPULimit      string
	MemoryLimit   string
}

// ExperimentSpec describes an experiment to submit
type ExperimentSpec struct {
	// Name names the experiment, the resulting model and the Job prefix
	Name string
	// Script is the training entry point, relative to the source directory
	Script string
	// SourceDirectory is the project source tree mounted into the run
	SourceDirectory string
	// EnvironmentName selects or creates the runtime environment
	EnvironmentName string
	// DockerBaseImage is used when the environment has to be created
	DockerBaseImage string
	// RunLocal schedules the run without a compute pool selector
	RunLocal bool
	// ClusterName pins the run to a labelled compute pool; overrules RunLocal
	ClusterName string
	// ClusterConfig sets resource requests for the compute pool
	ClusterConfig *ClusterConfig
	// EnvironmentVariables are exposed inside the run
	EnvironmentVariables map[string]string
}

// Experiment submits training runs and registers their models
type Experiment struct {
	ws   *Workspace
	spec ExperimentSpec
	run  *registry.Run
	// model is set by RegisterModel and required by Deploy
	model        *registry.Model
	pollInterval time.Duration
	log          *logging.Logger
}

// NewExperiment creates an experiment facade for the workspace
func NewExperiment(ws *Workspace, spec ExperimentSpec) *Experiment {
	return &Experiment{
		ws:           ws,
		spec:         spec,
		pollInterval: 2 * time.Second,
		log:          logging.Default().WithComponent("platform/experiment"),
	}
}

// Run submits the experiment as a Kubernetes Job and waits for it to
// finish. The run is recorded in the registry with the given tags and its
// final status.
func (e *Experiment) Run(ctx context.Context, tags map[string]string) (*registry.Run, error) {
	env, err := e.ws.EnsureEnvironment(e.spec.EnvironmentName, e.spec.DockerBaseImage, e.spec.EnvironmentVariables)
	if err != nil {
		return nil, err
	}

	run, err := e.ws.Registry().CreateRun(e.spec.Name, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.run = run

	clients, err := e.ws.clients()
	if err != nil {
		return nil, err
	}

	job := e.buildJob(run.ID, env.Image)
	if _, err := clients.BatchV1().Jobs(e.ws.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		e.failRun(run.ID)
		return nil, fmt.Errorf("failed to create experiment job: %w", err)
	}
	e.log.Info("submitted experiment", logging.String("experiment", e.spec.Name), logging.String("run", run.ID))

	status, err := e.waitForJob(ctx, job.Name)
	if err != nil {
		e.failRun(run.ID)
		return nil, err
	}
	if status != registry.RunStatusCompleted {
		e.failRun(run.ID)
		return nil, fmt.Errorf("experiment run %s failed", run.ID)
	}

	if err := e.ws.Registry().UpdateRunStatus(run.ID, registry.RunStatusCompleted); err != nil {
		return nil, err
	}
	run.Status = registry.RunStatusCompleted
	e.log.Info("experiment completed successfully", logging.String("run", run.ID))
	return run, nil
}

// RegisterModel registers the completed run's model artifact under the
// experiment name. An experiment has to be run first.
func (e *Experiment) RegisterModel(tags map[string]string) (*registry.Model, error) {
	if e.run == nil {
		return nil, fmt.Errorf("an experiment has to be run before a model can be registered")
	}
	modelPath := filepath.Join(e.spec.SourceDirectory, filepath.FromSlash(modelArtifactFile))
	model, err := e.ws.Registry().RegisterModel(e.spec.Name, modelPath, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to register model: %w", err)
	}
	e.model = model
	return model, nil
}

// AttachModel loads the latest registered version of the named model so
// it can be deployed without re-running the experiment.
func (e *Experiment) AttachModel(name string) error {
	model, err := e.ws.Registry().GetModel(name)
	if err != nil {
		return err
	}
	e.model = model
	return nil
}

// buildJob assembles the Job for one run. Non-local runs are pinned to
// the named compute pool via a node selector.
func (e *Experiment) buildJob(runID, image string) *batchv1.Job {
	labels := map[string]string{
		"app":        "interface-tools",
		"experiment": e.spec.Name,
		"run-id":     runID,
	}

	envVars := make([]corev1.EnvVar, 0, len(e.spec.EnvironmentVariables)+1)
	envVars = append(envVars, corev1.EnvVar{Name: "RUN_ID", Value: runID})
	for name, value := range e.spec.EnvironmentVariables {
		envVars = append(envVars, corev1.EnvVar{Name: name, Value: value})
	}

	cpuRequest := "500m"
	memoryRequest := "1Gi"
	cpuLimit := "2000m"
	memoryLimit := "4Gi"
	if cc := e.spec.ClusterConfig; cc != nil {
		if cc.CPURequest != "" {
			cpuRequest = cc.CPURequest
		}
		if cc.MemoryRequest != "" {
			memoryRequest = cc.MemoryRequest
		}
		if cc.CPULimit != "" {
			cpuLimit = cc.CPULimit
		}
		if cc.MemoryLimit != "" {
			memoryLimit = cc.MemoryLimit
		}
	}

	var nodeSelector map[string]string
	if e.spec.ClusterName != "" {
		nodeSelector = map[string]string{"compute-pool": e.spec.ClusterName}
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("experiment-%s-%s", e.spec.Name, runID[:8]),
			Namespace: e.ws.namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: int32Ptr(300),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					NodeSelector: nodeSelector,
					Containers: []corev1.Container{
						{
							Name:            "experiment",
							Image:           image,
							ImagePullPolicy: corev1.PullAlways,
							WorkingDir:      e.spec.SourceDirectory,
							Command:         []string{e.spec.Script},
							Env:             envVars,
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    parseQuantity(cpuRequest),
									corev1.ResourceMemory: parseQuantity(memoryRequest),
								},
								Limits: corev1.ResourceList{
									corev1.ResourceCPU:    parseQuantity(cpuLimit),
									corev1.ResourceMemory: parseQuantity(memoryLimit),
								},
							},
						},
					},
					RestartPolicy: corev1.RestartPolicyNever,
				},
			},
		},
	}
}

// waitForJob polls the Job until it succeeds or fails
func (e *Experiment) waitForJob(ctx context.Context, jobName string) (string, error) {
	clients, err := e.ws.clients()
	if err != nil {
		return "", err
	}
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		job, err := clients.BatchV1().Jobs(e.ws.namespace).Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("failed to get job status: %w", err)
		}
		if job.Status.Succeeded > 0 {
			return registry.RunStatusCompleted, nil
		}
		if job.Status.Failed > 0 {
			return registry.RunStatusFailed, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Experiment) failRun(runID string) {
	if err := e.ws.Registry().UpdateRunStatus(runID, registry.RunStatusFailed); err != nil {
		e.log.Error("failed to mark run as failed", err, logging.String("run", runID))
	}
}

func int32Ptr(i int32) *int32 {
	return &i
}

func parseQuantity(s string) resource.Quantity {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return resource.MustParse("0")
	}
	return q
}
