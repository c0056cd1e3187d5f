// Package awsbatch implements batchapi.RemoteClient against the real AWS
// Batch service using aws-sdk-go-v2.
package awsbatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/aws/smithy-go"

	"github.com/mhconradt/aio-aws/internal/batchjob"
)

// Client adapts batch.Client to batchapi.RemoteClient.
type Client struct {
	batch *batch.Client
}

// New builds a Client from the default AWS config chain, sizing the
// transport's idle-connection pool to gateWidth so the HTTP layer and the
// Rate Gate agree on how much concurrency they allow.
func New(ctx context.Context, gateWidth int) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: gateWidth,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("awsbatch: load config: %w", err)
	}
	return &Client{batch: batch.NewFromConfig(cfg)}, nil
}

// SubmitJob calls batch:SubmitJob.
func (c *Client) SubmitJob(ctx context.Context, params batchjob.SubmitParams) (batchjob.Submission, error) {
	input := &batch.SubmitJobInput{
		JobName:       aws.String(params.JobName),
		JobQueue:      aws.String(params.JobQueue),
		JobDefinition: aws.String(params.JobDefinition),
	}
	if overrides := containerOverrides(params.ContainerOverrides); overrides != nil {
		input.ContainerOverrides = overrides
	}
	for _, dep := range params.DependsOn {
		input.DependsOn = append(input.DependsOn, types.JobDependency{
			JobId: aws.String(dep.JobID),
			Type:  types.ArrayJobDependency(dep.Type),
		})
	}

	out, err := c.batch.SubmitJob(ctx, input)
	if err != nil {
		return batchjob.Submission{}, err
	}
	return batchjob.Submission{
		JobName: aws.ToString(out.JobName),
		JobID:   aws.ToString(out.JobId),
	}, nil
}

// DescribeJobs calls batch:DescribeJobs.
func (c *Client) DescribeJobs(ctx context.Context, jobIDs []string) ([]batchjob.Description, error) {
	out, err := c.batch.DescribeJobs(ctx, &batch.DescribeJobsInput{Jobs: jobIDs})
	if err != nil {
		return nil, err
	}
	descs := make([]batchjob.Description, 0, len(out.Jobs))
	for _, j := range out.Jobs {
		descs = append(descs, batchjob.Description{
			JobID:         aws.ToString(j.JobId),
			JobName:       aws.ToString(j.JobName),
			JobQueue:      aws.ToString(j.JobQueue),
			JobDefinition: aws.ToString(j.JobDefinition),
			Status:        batchjob.Status(j.Status),
			StatusReason:  aws.ToString(j.StatusReason),
			CreatedAt:     aws.ToInt64(j.CreatedAt),
			StartedAt:     aws.ToInt64(j.StartedAt),
			StoppedAt:     aws.ToInt64(j.StoppedAt),
		})
	}
	return descs, nil
}

// TerminateJob calls batch:TerminateJob.
func (c *Client) TerminateJob(ctx context.Context, jobID, reason string) error {
	_, err := c.batch.TerminateJob(ctx, &batch.TerminateJobInput{
		JobId:  aws.String(jobID),
		Reason: aws.String(reason),
	})
	return err
}

// containerOverrides translates the Job Record's loosely-typed override map
// into the SDK's ContainerOverrides. The keys "command", "environment",
// "memory", "vcpus", and "resourceRequirements" are forwarded; any other key,
// and any value of a shape these converters do not recognise, is ignored.
func containerOverrides(raw map[string]any) *types.ContainerOverrides {
	if len(raw) == 0 {
		return nil
	}
	overrides := &types.ContainerOverrides{}
	if cmd, ok := raw["command"]; ok {
		if strs, ok := toStringSlice(cmd); ok {
			overrides.Command = strs
		}
	}
	if env, ok := raw["environment"]; ok {
		overrides.Environment = toKeyValuePairs(env)
	}
	if mem, ok := raw["memory"]; ok {
		if n, ok := toInt32(mem); ok {
			overrides.Memory = aws.Int32(n)
		}
	}
	if vcpus, ok := raw["vcpus"]; ok {
		if n, ok := toInt32(vcpus); ok {
			overrides.Vcpus = aws.Int32(n)
		}
	}
	if reqs, ok := raw["resourceRequirements"]; ok {
		overrides.ResourceRequirements = toResourceRequirements(reqs)
	}
	return overrides
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// toKeyValuePairs accepts either a map[string]string (the common JSON job
// file shape, {"NAME": "value"}) or a []any of {"name": ..., "value": ...}
// objects, matching how SubmitJob's EnvironmentVariables are documented.
func toKeyValuePairs(v any) []types.KeyValuePair {
	switch vv := v.(type) {
	case map[string]string:
		out := make([]types.KeyValuePair, 0, len(vv))
		for k, val := range vv {
			out = append(out, types.KeyValuePair{Name: aws.String(k), Value: aws.String(val)})
		}
		return out
	case map[string]any:
		out := make([]types.KeyValuePair, 0, len(vv))
		for k, val := range vv {
			if s, ok := val.(string); ok {
				out = append(out, types.KeyValuePair{Name: aws.String(k), Value: aws.String(s)})
			}
		}
		return out
	case []any:
		out := make([]types.KeyValuePair, 0, len(vv))
		for _, item := range vv {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			val, _ := m["value"].(string)
			if name == "" {
				continue
			}
			out = append(out, types.KeyValuePair{Name: aws.String(name), Value: aws.String(val)})
		}
		return out
	default:
		return nil
	}
}

// toResourceRequirements accepts a []any of {"type": "VCPU"|"MEMORY"|"GPU",
// "value": "..."} objects, the shape SubmitJob's ResourceRequirements takes.
func toResourceRequirements(v any) []types.ResourceRequirement {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]types.ResourceRequirement, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		val, _ := m["value"].(string)
		if typ == "" || val == "" {
			continue
		}
		out = append(out, types.ResourceRequirement{
			Type:  types.ResourceType(typ),
			Value: aws.String(val),
		})
	}
	return out
}

func toInt32(v any) (int32, bool) {
	switch vv := v.(type) {
	case int32:
		return vv, true
	case int:
		return int32(vv), true
	case int64:
		return int32(vv), true
	case float64:
		return int32(vv), true
	case string:
		n, err := strconv.Atoi(vv)
		if err != nil {
			return 0, false
		}
		return int32(n), true
	default:
		return 0, false
	}
}

// IsThrottled classifies err as a TooManyRequestsException, the error AWS
// Batch returns when the caller exceeds its API rate limit.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "TooManyRequestsException"
	}
	return false
}
