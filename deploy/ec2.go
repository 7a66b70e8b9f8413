package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// EC2API 部署用到的 EC2 接口, *ec2.Client 实现了该接口
type EC2API interface {
	ec2.DescribeInstancesAPIClient
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// 实例状态
const (
	StatePending      = "pending"
	StateRunning      = "running"
	StateShuttingDown = "shutting-down"
	StateStopping     = "stopping"
	StateStopped      = "stopped"
)

// Instance 实例信息
type Instance struct {
	ID       string
	PublicIP string
	State    string
}

// LoadAWSConfig 使用配置中的静态凭证创建 AWS 配置
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return awsCfg, nil
}

// Provisioner 管理项目的密钥对、安全组与实例
type Provisioner struct {
	cfg    Config
	ec2    EC2API
	logger *slog.Logger

	// WaitTimeout 等待实例状态变化的上限
	WaitTimeout time.Duration
}

// NewProvisioner 创建 Provisioner
func NewProvisioner(cfg Config, client EC2API, logger *slog.Logger) *Provisioner {
	return &Provisioner{cfg: cfg, ec2: client, logger: orDefault(logger), WaitTimeout: 15 * time.Minute}
}

// EnsureKeyPair 密钥对不存在时创建
func (p *Provisioner) EnsureKeyPair(ctx context.Context) error {
	_, err := p.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{p.cfg.KeyName()}})
	if err == nil {
		return nil
	}
	if !hasErrorCode(err, "InvalidKeyPair.NotFound") {
		return fmt.Errorf("查询密钥对失败: %w", err)
	}
	return p.CreateKeyPair(ctx)
}

// CreateKeyPair 创建密钥对, 私钥以只读权限保存到 KeyPath
func (p *Provisioner) CreateKeyPair(ctx context.Context) error {
	out, err := p.ec2.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{KeyName: aws.String(p.cfg.KeyName())})
	if err != nil {
		p.logger.Error("创建密钥对失败", "key", p.cfg.KeyName(), "error", err)
		return fmt.Errorf("创建密钥对失败: %w", err)
	}
	path := p.cfg.KeyPath()
	if err := os.WriteFile(path, []byte(aws.ToString(out.KeyMaterial)), 0o400); err != nil {
		return fmt.Errorf("保存私钥失败: %w", err)
	}
	p.logger.Info("密钥对已创建", "key", p.cfg.KeyName(), "path", path)
	return nil
}

// EnsureSecurityGroup 获取或创建安全组, 并对 ports 开放 TCP 入站
func (p *Provisioner) EnsureSecurityGroup(ctx context.Context, ports []int32) (string, error) {
	name := p.cfg.SecurityGroupName()
	perms := make([]types.IpPermission, len(ports))
	for i, port := range ports {
		perms[i] = types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}
	}

	out, err := p.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupNames: []string{name}})
	switch {
	case err == nil && len(out.SecurityGroups) > 0:
		id := aws.ToString(out.SecurityGroups[0].GroupId)
		p.logger.Info("安全组已存在", "name", name, "id", id)
		for _, perm := range perms {
			_, err := p.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId:       aws.String(id),
				IpPermissions: []types.IpPermission{perm},
			})
			port := aws.ToInt32(perm.FromPort)
			switch {
			case err == nil:
				p.logger.Info("已开放端口", "port", port)
			case hasErrorCode(err, "InvalidPermission.Duplicate"):
				p.logger.Info("端口规则已存在", "port", port)
			default:
				p.logger.Error("开放端口失败", "port", port, "error", err)
			}
		}
		return id, nil
	case err != nil && !hasErrorCode(err, "InvalidGroup.NotFound"):
		return "", fmt.Errorf("查询安全组失败: %w", err)
	}

	created, err := p.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("Security group for specified port access"),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeSecurityGroup,
			Tags:         p.nameTags(),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("创建安全组失败: %w", err)
	}
	id := aws.ToString(created.GroupId)
	p.logger.Info("安全组已创建", "name", name, "id", id)

	if _, err := p.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(id),
		IpPermissions: perms,
	}); err != nil {
		return "", fmt.Errorf("开放端口失败: %w", err)
	}
	p.logger.Info("已开放端口", "ports", ports)
	return id, nil
}

// DeployInstance 复用已有实例或创建新实例, 返回运行中的实例
//
// 运行中的实例直接返回; 已停止的实例会被启动; pending 的实例等待其运行.
func (p *Provisioner) DeployInstance(ctx context.Context) (Instance, error) {
	if err := p.EnsureKeyPair(ctx); err != nil {
		return Instance{}, err
	}
	sgID, err := p.EnsureSecurityGroup(ctx, []int32{22, int32(p.cfg.Port)})
	if err != nil {
		return Instance{}, err
	}

	existing, err := p.Instances(ctx, StateRunning, StatePending, StateStopped)
	if err != nil {
		return Instance{}, err
	}
	for _, inst := range existing {
		switch inst.State {
		case StateRunning:
			p.logger.Info("实例已在运行", "id", inst.ID, "ip", inst.PublicIP)
			return inst, nil
		case StateStopped:
			p.logger.Info("启动已停止的实例", "id", inst.ID)
			if _, err := p.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{inst.ID}}); err != nil {
				return Instance{}, fmt.Errorf("启动实例失败: %w", err)
			}
			return p.waitRunning(ctx, inst.ID)
		case StatePending:
			p.logger.Info("实例正在启动, 等待运行", "id", inst.ID)
			return p.waitRunning(ctx, inst.ID)
		}
	}

	out, err := p.ec2.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(p.cfg.AMI),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		InstanceType:     types.InstanceType(p.cfg.InstanceType),
		KeyName:          aws.String(p.cfg.KeyName()),
		SecurityGroupIds: []string{sgID},
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/sda1"),
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(p.cfg.DiskSize),
				VolumeType:          types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         p.nameTags(),
		}},
	})
	if err != nil {
		return Instance{}, fmt.Errorf("创建实例失败: %w", err)
	}
	if len(out.Instances) == 0 {
		return Instance{}, errors.New("创建实例失败: 没有返回实例")
	}
	inst, err := p.waitRunning(ctx, aws.ToString(out.Instances[0].InstanceId))
	if err != nil {
		return Instance{}, err
	}
	p.logger.Info("新实例已创建", "id", inst.ID, "ip", inst.PublicIP)
	return inst, nil
}

// Instances 项目的实例, states 为空时不按状态过滤
func (p *Provisioner) Instances(ctx context.Context, states ...string) ([]Instance, error) {
	filters := []types.Filter{{Name: aws.String("tag:Name"), Values: []string{p.cfg.ProjectName}}}
	if len(states) > 0 {
		filters = append(filters, types.Filter{Name: aws.String("instance-state-name"), Values: states})
	}

	var out []Instance
	pager := ec2.NewDescribeInstancesPaginator(p.ec2, &ec2.DescribeInstancesInput{Filters: filters})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("查询实例失败: %w", err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				out = append(out, toInstance(inst))
			}
		}
	}
	return out, nil
}

// Pause 停止运行中的实例, 之后可再次 start
func (p *Provisioner) Pause(ctx context.Context) error {
	running, err := p.Instances(ctx, StateRunning)
	if err != nil {
		return err
	}
	for _, inst := range running {
		p.logger.Info("停止实例", "id", inst.ID)
		if _, err := p.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{inst.ID}}); err != nil {
			return fmt.Errorf("停止实例 %s 失败: %w", inst.ID, err)
		}
	}
	return nil
}

// Stop 终止实例并删除安全组, 安全组不存在时忽略
func (p *Provisioner) Stop(ctx context.Context) error {
	instances, err := p.Instances(ctx, StatePending, StateRunning, StateShuttingDown, StateStopped, StateStopping)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		p.logger.Info("终止实例", "id", inst.ID)
		if _, err := p.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{inst.ID}}); err != nil {
			return fmt.Errorf("终止实例 %s 失败: %w", inst.ID, err)
		}
		waiter := ec2.NewInstanceTerminatedWaiter(p.ec2)
		if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{inst.ID}}, p.WaitTimeout); err != nil {
			return fmt.Errorf("等待实例 %s 终止失败: %w", inst.ID, err)
		}
		p.logger.Info("实例已终止", "id", inst.ID)
	}

	name := p.cfg.SecurityGroupName()
	_, err = p.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupName: aws.String(name)})
	switch {
	case err == nil:
		p.logger.Info("安全组已删除", "name", name)
	case hasErrorCode(err, "InvalidGroup.NotFound"):
		p.logger.Info("安全组不存在或已删除", "name", name)
	default:
		p.logger.Error("删除安全组失败", "name", name, "error", err)
		return fmt.Errorf("删除安全组失败: %w", err)
	}
	return nil
}

// Status 列出项目的全部实例
func (p *Provisioner) Status(ctx context.Context) ([]Instance, error) {
	instances, err := p.Instances(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		url := "不可用 (没有公网 IP)"
		if inst.PublicIP != "" {
			url = p.cfg.ServerURL(inst.PublicIP)
		}
		p.logger.Info("实例", "id", inst.ID, "state", inst.State, "url", url)
	}
	return instances, nil
}

// Running 运行中的实例, 没有时返回 ErrNoInstance
func (p *Provisioner) Running(ctx context.Context) ([]Instance, error) {
	running, err := p.Instances(ctx, StateRunning)
	if err != nil {
		return nil, err
	}
	if len(running) == 0 {
		return nil, ErrNoInstance
	}
	return running, nil
}

func (p *Provisioner) waitRunning(ctx context.Context, id string) (Instance, error) {
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	out, err := ec2.NewInstanceRunningWaiter(p.ec2).WaitForOutput(ctx, input, p.WaitTimeout)
	if err != nil {
		return Instance{}, fmt.Errorf("等待实例 %s 运行失败: %w", id, err)
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) == id {
				return toInstance(inst), nil
			}
		}
	}
	return Instance{ID: id, State: StateRunning}, nil
}

func (p *Provisioner) nameTags() []types.Tag {
	return []types.Tag{{Key: aws.String("Name"), Value: aws.String(p.cfg.ProjectName)}}
}

func toInstance(inst types.Instance) Instance {
	out := Instance{
		ID:       aws.ToString(inst.InstanceId),
		PublicIP: aws.ToString(inst.PublicIpAddress),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	return out
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// hasErrorCode 判断 AWS API 错误码
func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
