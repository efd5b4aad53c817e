package orchestrator

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sessionpod/orchestrator/pkg/session"
)

// PodConfig describes the single-container sandbox pod to create.
type PodConfig struct {
	Image string
	Port  int32
}

// K8sOrchestrator implements Orchestrator on top of a
// sigs.k8s.io/controller-runtime client with watch support, creating plain
// Pods (no CRDs) labeled app=session-pod the way the worker's pod manifest
// does.
type K8sOrchestrator struct {
	client    client.WithWatch
	namespace string
	pod       PodConfig
}

// New returns a K8sOrchestrator scoped to namespace.
func New(c client.WithWatch, namespace string, pod PodConfig) *K8sOrchestrator {
	return &K8sOrchestrator{client: c, namespace: namespace, pod: pod}
}

func (o *K8sOrchestrator) manifest(userID, sanitizedID string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      session.PodName(sanitizedID),
			Namespace: o.namespace,
			Labels: map[string]string{
				"app":     "session-pod",
				"user_id": sanitizedID,
			},
			Annotations: map[string]string{
				"original_id": userID,
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:  "sandbox",
					Image: o.pod.Image,
					Ports: []corev1.ContainerPort{
						{ContainerPort: o.pod.Port},
					},
				},
			},
		},
	}
}

func (o *K8sOrchestrator) CreateSandbox(ctx context.Context, userID, sanitizedID string) error {
	pod := o.manifest(userID, sanitizedID)
	err := o.client.Create(ctx, pod)
	if err == nil || apierrors.IsAlreadyExists(err) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (o *K8sOrchestrator) ReadSandbox(ctx context.Context, sanitizedID string) (Sandbox, bool, error) {
	var pod corev1.Pod
	key := client.ObjectKey{Namespace: o.namespace, Name: session.PodName(sanitizedID)}
	if err := o.client.Get(ctx, key, &pod); err != nil {
		if apierrors.IsNotFound(err) {
			return Sandbox{}, false, nil
		}
		return Sandbox{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return toSandbox(&pod), true, nil
}

func toSandbox(pod *corev1.Pod) Sandbox {
	return Sandbox{
		Name:  pod.Name,
		Phase: Phase(pod.Status.Phase),
		Addr:  pod.Status.PodIP,
	}
}

// WaitUntilAddressable watches the single pod by field selector on its own
// name, mirroring the reference implementation's
// watch.Watch().stream(..., field_selector=f"metadata.name={pod_name}").
// It returns as soon as an event reports Running with a pod IP, or
// ErrTimedOut when ctx's deadline elapses first.
func (o *K8sOrchestrator) WaitUntilAddressable(ctx context.Context, sanitizedID string) (Sandbox, error) {
	name := session.PodName(sanitizedID)

	// A pod may already be addressable by the time we start watching;
	// check first so we don't wait out a full watch cycle needlessly.
	if sb, ok, err := o.ReadSandbox(ctx, sanitizedID); err != nil {
		return Sandbox{}, err
	} else if ok && sb.Addressable() {
		return sb, nil
	}

	selector := fields.OneTermEqualSelector("metadata.name", name).String()
	watcher, err := o.client.Watch(ctx, &corev1.PodList{}, client.InNamespace(o.namespace), &client.ListOptions{
		FieldSelector: fieldSelectorFromString(selector),
	})
	if err != nil {
		return Sandbox{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return Sandbox{}, ErrTimedOut
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return Sandbox{}, fmt.Errorf("%w: watch closed", ErrUnavailable)
			}
			pod, isPod := event.Object.(*corev1.Pod)
			if !isPod {
				continue
			}
			sb := toSandbox(pod)
			if sb.Addressable() {
				return sb, nil
			}
		}
	}
}

func (o *K8sOrchestrator) DeleteSandbox(ctx context.Context, sanitizedID string) error {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      session.PodName(sanitizedID),
			Namespace: o.namespace,
		},
	}
	if err := o.client.Delete(ctx, pod); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// fieldSelectorFromString wraps a pre-built selector string for
// client.ListOptions, which wants a fields.Selector.
func fieldSelectorFromString(s string) fields.Selector {
	sel, err := fields.ParseSelector(s)
	if err != nil {
		return fields.Everything()
	}
	return sel
}
