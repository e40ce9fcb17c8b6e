package deploy

// Collection relation names advertised by the root document.
const (
	RelProjects     = "Projects"
	RelReleases     = "Releases"
	RelEnvironments = "Environments"
	RelFeeds        = "Feeds"
	RelSpaces       = "Spaces"
)

// Named is implemented by resources that carry a unique name.
type Named interface {
	GetName() string
}

// Project is a deployable project.
type Project struct {
	Resource

	Name           string `json:"Name"`
	Slug           string `json:"Slug,omitempty"`
	Description    string `json:"Description,omitempty"`
	ProjectGroupID string `json:"ProjectGroupId,omitempty"`
	LifecycleID    string `json:"LifecycleId,omitempty"`
	SpaceID        string `json:"SpaceId,omitempty"`
	IsDisabled     bool   `json:"IsDisabled,omitempty"`
}

// GetName returns the project name.
func (p Project) GetName() string {
	return p.Name
}

// Release is a snapshot of a project ready for deployment.
type Release struct {
	Resource

	Version      string `json:"Version"`
	ProjectID    string `json:"ProjectId"`
	ChannelID    string `json:"ChannelId,omitempty"`
	ReleaseNotes string `json:"ReleaseNotes,omitempty"`
	SpaceID      string `json:"SpaceId,omitempty"`
}

// Environment is a deployment target group.
type Environment struct {
	Resource

	Name                       string `json:"Name"`
	Description                string `json:"Description,omitempty"`
	SortOrder                  int    `json:"SortOrder,omitempty"`
	UseGuidedFailure           bool   `json:"UseGuidedFailure,omitempty"`
	AllowDynamicInfrastructure bool   `json:"AllowDynamicInfrastructure,omitempty"`
	SpaceID                    string `json:"SpaceId,omitempty"`
}

// GetName returns the environment name.
func (e Environment) GetName() string {
	return e.Name
}

// Space partitions server resources.
type Space struct {
	Resource

	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
	IsDefault   bool   `json:"IsDefault,omitempty"`
}

// GetName returns the space name.
func (s Space) GetName() string {
	return s.Name
}

// FeedType identifies the kind of package feed.
type FeedType string

// Feed types.
const (
	FeedTypeNone                        FeedType = "None"
	FeedTypeNuGet                       FeedType = "NuGet"
	FeedTypeDocker                      FeedType = "Docker"
	FeedTypeMaven                       FeedType = "Maven"
	FeedTypeOctopusProject              FeedType = "OctopusProject"
	FeedTypeGitHub                      FeedType = "GitHub"
	FeedTypeBuiltIn                     FeedType = "BuiltIn"
	FeedTypeHelm                        FeedType = "Helm"
	FeedTypeAwsElasticContainerRegistry FeedType = "AwsElasticContainerRegistry"
	FeedTypeS3                          FeedType = "S3"
)

var knownFeedTypes = map[FeedType]struct{}{
	FeedTypeNone: {}, FeedTypeNuGet: {}, FeedTypeDocker: {}, FeedTypeMaven: {},
	FeedTypeOctopusProject: {}, FeedTypeGitHub: {}, FeedTypeBuiltIn: {},
	FeedTypeHelm: {}, FeedTypeAwsElasticContainerRegistry: {}, FeedTypeS3: {},
}

// Valid reports whether t is a known feed type.
func (t FeedType) Valid() bool {
	_, ok := knownFeedTypes[t]

	return ok
}

// Feed is an external or built-in package source.
type Feed struct {
	Resource

	Name     string   `json:"Name"`
	FeedType FeedType `json:"FeedType"`
	FeedURI  string   `json:"FeedUri,omitempty"`
	SpaceID  string   `json:"SpaceId,omitempty"`
}

// GetName returns the feed name.
func (f Feed) GetName() string {
	return f.Name
}
