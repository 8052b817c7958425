package platform

import (
	"context"
	"errors"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/equinor/interface-tools/pkg/logging"
)

// ErrTargetNotImplemented is returned for recognized deployment targets
// that are not built yet.
var ErrTargetNotImplemented = errors.New("deployment target is not currently implemented")

// DeploymentTarget selects where a model service is hosted
type DeploymentTarget string

const (
	// TargetLocal hosts the service as a single replica with a host port
	TargetLocal DeploymentTarget = "local"
	// TargetCluster hosts the service behind a cluster Service
	TargetCluster DeploymentTarget = "cluster"
	// TargetEdge is recognized but not implemented
	TargetEdge DeploymentTarget = "edge"
)

const defaultServicePort = 8090

// DeploymentSpec describes a model service deployment
type DeploymentSpec struct {
	// Name names the Deployment and Service
	Name string
	// Target selects the hosting mode
	Target DeploymentTarget
	// InferenceImage serves the model; defaults to the experiment environment image
	InferenceImage string
	// Port is the service endpoint port, defaults to 8090
	Port int32
	// Replicas for cluster deployments, defaults to 1
	Replicas int32
}

// ServiceHandle describes a deployed model service
type ServiceHandle struct {
	Name      string
	Namespace string
	Port      int32
	ModelName string
}

// Deploy hosts the registered model as a web service. A model has to be
// registered before deploying. Existing deployments with the same name
// are overwritten.
func (e *Experiment) Deploy(ctx context.Context, spec DeploymentSpec) (*ServiceHandle, error) {
	if e.model == nil {
		return nil, fmt.Errorf("a model has to be registered before deploying")
	}

	switch spec.Target {
	case TargetLocal, TargetCluster:
	case TargetEdge:
		return nil, fmt.Errorf("target %q: %w", spec.Target, ErrTargetNotImplemented)
	default:
		return nil, fmt.Errorf("deployment target of value %q not supported", string(spec.Target))
	}

	if spec.Port == 0 {
		spec.Port = defaultServicePort
	}
	if spec.Replicas == 0 {
		spec.Replicas = 1
	}
	image := spec.InferenceImage
	if image == "" {
		image = e.spec.DockerBaseImage
	}

	clients, err := e.ws.clients()
	if err != nil {
		return nil, err
	}

	deployment := e.buildDeployment(spec, image)
	deployments := clients.AppsV1().Deployments(e.ws.namespace)
	if _, err := deployments.Create(ctx, deployment, metav1.CreateOptions{}); err != nil {
		if !k8serrors.IsAlreadyExists(err) {
			return nil, fmt.Errorf("failed to create deployment: %w", err)
		}
		if _, err := deployments.Update(ctx, deployment, metav1.UpdateOptions{}); err != nil {
			return nil, fmt.Errorf("failed to update deployment: %w", err)
		}
	}

	if spec.Target == TargetCluster {
		service := e.buildService(spec)
		services := clients.CoreV1().Services(e.ws.namespace)
		if _, err := services.Create(ctx, service, metav1.CreateOptions{}); err != nil {
			if !k8serrors.IsAlreadyExists(err) {
				return nil, fmt.Errorf("failed to create service: %w", err)
			}
			if _, err := services.Update(ctx, service, metav1.UpdateOptions{}); err != nil {
				return nil, fmt.Errorf("failed to update service: %w", err)
			}
		}
	}

	e.log.Info("deployed model service", logging.String("name", spec.Name), logging.String("target", string(spec.Target)))
	return &ServiceHandle{
		Name:      spec.Name,
		Namespace: e.ws.namespace,
		Port:      spec.Port,
		ModelName: e.model.Name,
	}, nil
}

func (e *Experiment) buildDeployment(spec DeploymentSpec, image string) *appsv1.Deployment {
	labels := map[string]string{
		"app":     "interface-tools",
		"service": spec.Name,
		"model":   e.model.Name,
	}

	replicas := spec.Replicas
	container := corev1.Container{
		Name:            "inference",
		Image:           image,
		ImagePullPolicy: corev1.PullAlways,
		Env: []corev1.EnvVar{
			{Name: "MODEL_DIR", Value: e.model.Path},
			{Name: "MODEL_NAME", Value: e.model.Name},
		},
		Ports: []corev1.ContainerPort{{ContainerPort: spec.Port}},
	}
	if spec.Target == TargetLocal {
		// Local hosting binds the fixed endpoint port on the node.
		replicas = 1
		container.Ports[0].HostPort = spec.Port
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: e.ws.namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(replicas),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{container},
				},
			},
		},
	}
}

func (e *Experiment) buildService(spec DeploymentSpec) *corev1.Service {
	labels := map[string]string{
		"app":     "interface-tools",
		"service": spec.Name,
		"model":   e.model.Name,
	}
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: e.ws.namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: labels,
			Ports: []corev1.ServicePort{
				{
					Port:       spec.Port,
					TargetPort: intstr.FromInt32(spec.Port),
				},
			},
		},
	}
}
