package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
)

// ECRAPI 镜像仓库接口, *ecr.Client 实现了该接口
type ECRAPI interface {
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	DeleteRepository(ctx context.Context, params *ecr.DeleteRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error)
}

// CodeBuildAPI 构建服务接口, *codebuild.Client 实现了该接口
type CodeBuildAPI interface {
	BatchGetProjects(ctx context.Context, params *codebuild.BatchGetProjectsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error)
	CreateProject(ctx context.Context, params *codebuild.CreateProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.CreateProjectOutput, error)
	DeleteProject(ctx context.Context, params *codebuild.DeleteProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.DeleteProjectOutput, error)
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
}

// buildSpec 登录 ECR, 构建并推送镜像
const buildSpec = `version: 0.2
phases:
  pre_build:
    commands:
      - aws ecr get-login-password --region $AWS_DEFAULT_REGION | docker login --username AWS --password-stdin ${REPOSITORY_URI%%/*}
  build:
    commands:
      - docker build -t $REPOSITORY_URI:latest .
  post_build:
    commands:
      - docker push $REPOSITORY_URI:latest
`

// Builder 在 CodeBuild 上构建镜像并推送到 ECR
type Builder struct {
	cfg       Config
	ecr       ECRAPI
	codebuild CodeBuildAPI
	logger    *slog.Logger
}

// NewBuilder 创建 Builder
func NewBuilder(cfg Config, ecrClient ECRAPI, cbClient CodeBuildAPI, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, ecr: ecrClient, codebuild: cbClient, logger: orDefault(logger)}
}

// EnsureRepository 获取或创建与项目同名的镜像仓库, 返回仓库 URI
func (b *Builder) EnsureRepository(ctx context.Context) (string, error) {
	name := b.cfg.ProjectName
	out, err := b.ecr.CreateRepository(ctx, &ecr.CreateRepositoryInput{RepositoryName: aws.String(name)})
	if err == nil {
		uri := aws.ToString(out.Repository.RepositoryUri)
		b.logger.Info("镜像仓库已创建", "name", name, "uri", uri)
		return uri, nil
	}
	if !hasErrorCode(err, "RepositoryAlreadyExistsException") {
		return "", fmt.Errorf("创建镜像仓库失败: %w", err)
	}

	desc, err := b.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{RepositoryNames: []string{name}})
	if err != nil {
		return "", fmt.Errorf("查询镜像仓库失败: %w", err)
	}
	if len(desc.Repositories) == 0 {
		return "", fmt.Errorf("镜像仓库 %s 不存在", name)
	}
	uri := aws.ToString(desc.Repositories[0].RepositoryUri)
	b.logger.Info("镜像仓库已存在", "name", name, "uri", uri)
	return uri, nil
}

// DeleteRepository 删除镜像仓库及其中的镜像, 不存在时忽略
func (b *Builder) DeleteRepository(ctx context.Context) error {
	name := b.cfg.ProjectName
	_, err := b.ecr.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{RepositoryName: aws.String(name), Force: true})
	switch {
	case err == nil:
		b.logger.Info("镜像仓库已删除", "name", name)
	case hasErrorCode(err, "RepositoryNotFoundException"):
		b.logger.Info("镜像仓库不存在或已删除", "name", name)
	default:
		return fmt.Errorf("删除镜像仓库失败: %w", err)
	}
	return nil
}

// EnsureProject 获取或创建构建项目
func (b *Builder) EnsureProject(ctx context.Context, repositoryURI string) error {
	name := b.cfg.ProjectName
	got, err := b.codebuild.BatchGetProjects(ctx, &codebuild.BatchGetProjectsInput{Names: []string{name}})
	if err != nil {
		return fmt.Errorf("查询构建项目失败: %w", err)
	}
	if len(got.Projects) > 0 {
		b.logger.Info("构建项目已存在", "name", name)
		return nil
	}
	if b.cfg.CodeBuildRoleARN == "" {
		return fmt.Errorf("缺少环境变量: AWS_CODEBUILD_ROLE_ARN")
	}

	_, err = b.codebuild.CreateProject(ctx, &codebuild.CreateProjectInput{
		Name: aws.String(name),
		Source: &cbtypes.ProjectSource{
			Type:      cbtypes.SourceTypeGithub,
			Location:  aws.String(fmt.Sprintf("https://github.com/%s.git", b.cfg.GitHubPath())),
			Buildspec: aws.String(buildSpec),
		},
		Artifacts: &cbtypes.ProjectArtifacts{Type: cbtypes.ArtifactsTypeNoArtifacts},
		Environment: &cbtypes.ProjectEnvironment{
			Type:           cbtypes.EnvironmentTypeLinuxContainer,
			Image:          aws.String(b.cfg.BuildImage),
			ComputeType:    cbtypes.ComputeTypeBuildGeneral1Medium,
			PrivilegedMode: aws.Bool(true),
			EnvironmentVariables: []cbtypes.EnvironmentVariable{{
				Name:  aws.String("REPOSITORY_URI"),
				Value: aws.String(repositoryURI),
				Type:  cbtypes.EnvironmentVariableTypePlaintext,
			}},
		},
		ServiceRole: aws.String(b.cfg.CodeBuildRoleARN),
	})
	if err != nil {
		return fmt.Errorf("创建构建项目失败: %w", err)
	}
	b.logger.Info("构建项目已创建", "name", name)
	return nil
}

// StartBuild 启动一次构建, 返回构建 ID
func (b *Builder) StartBuild(ctx context.Context) (string, error) {
	out, err := b.codebuild.StartBuild(ctx, &codebuild.StartBuildInput{ProjectName: aws.String(b.cfg.ProjectName)})
	if err != nil {
		return "", fmt.Errorf("启动构建失败: %w", err)
	}
	id := aws.ToString(out.Build.Id)
	b.logger.Info("构建已启动", "id", id)
	return id, nil
}

// DeleteProject 删除构建项目
func (b *Builder) DeleteProject(ctx context.Context) error {
	if _, err := b.codebuild.DeleteProject(ctx, &codebuild.DeleteProjectInput{Name: aws.String(b.cfg.ProjectName)}); err != nil {
		return fmt.Errorf("删除构建项目失败: %w", err)
	}
	b.logger.Info("构建项目已删除", "name", b.cfg.ProjectName)
	return nil
}
