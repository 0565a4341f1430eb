package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/entities"
	"github.com/leauyn/openavatarchat/domain/repositories"
)

const (
	toolGetUserInfo         = "get_user_info"
	toolGetUserSurveyData   = "get_user_survey_data"
	toolGetSurveyDetail     = "get_survey_detail"
	toolGuidanceByCode      = "get_guidance_by_code"
	toolGuidanceByDimension = "get_guidance_by_dimension"
	toolQueryKnowledgeBase  = "query_knowledge_base"
)

func userIDParam() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"user_id":{"type":"string","description":"用户的唯一标识"}},"required":["user_id"]}`)
}

// ToolCatalog returns the function schemas advertised to the model.
func ToolCatalog() []repositories.ToolSchema {
	return []repositories.ToolSchema{
		{
			Name:        toolGetUserInfo,
			Description: "查询用户的基本信息，包括姓名、年级、班级、学校等",
			Parameters:  userIDParam(),
		},
		{
			Name:        toolGetUserSurveyData,
			Description: "查询用户的心理测评结果摘要",
			Parameters:  userIDParam(),
		},
		{
			Name:        toolGetSurveyDetail,
			Description: "查询用户最近一次测评的详细数据",
			Parameters:  userIDParam(),
		},
		{
			Name:        toolGuidanceByCode,
			Description: "根据测评结果编码查询对应的辅导建议",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"code":{"type":"string","description":"测评结果编码"}},"required":["code"]}`),
		},
		{
			Name:        toolGuidanceByDimension,
			Description: "根据测评维度名称查询对应的辅导建议",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"dimension":{"type":"string","description":"测评维度名称"}},"required":["dimension"]}`),
		},
		{
			Name:        toolQueryKnowledgeBase,
			Description: "在心理健康知识库中检索问题相关的资料",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"检索的问题"}},"required":["query"]}`),
		},
	}
}

type toolArgs struct {
	UserID    string `json:"user_id"`
	Code      string `json:"code"`
	Dimension string `json:"dimension"`
	Query     string `json:"query"`
}

// ToolDispatcher executes model-requested tool calls against the user data
// service.
type ToolDispatcher struct {
	userData repositories.UserDataService
	logger   *zap.Logger
}

// NewToolDispatcher creates a dispatcher over the given user data service.
func NewToolDispatcher(userData repositories.UserDataService, logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{userData: userData, logger: logger}
}

// Dispatch executes one tool call. subjectID is the session's resolved
// subject, used when the model omits or fabricates user_id. The result is
// always a non-empty string suitable for a tool-role message.
func (d *ToolDispatcher) Dispatch(ctx context.Context, call entities.ToolCall, subjectID string) string {
	var args toolArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		d.logger.Warn("malformed tool arguments", zap.String("tool", call.Name), zap.Error(err))
		return fmt.Sprintf("工具 %s 的参数无法解析", call.Name)
	}

	userID := strings.TrimSpace(args.UserID)
	if userID == "" {
		userID = subjectID
	}

	var result string
	switch call.Name {
	case toolGetUserInfo:
		result = d.userData.Profile(ctx, userID)
	case toolGetUserSurveyData:
		result = d.userData.AssessmentSummary(ctx, userID)
	case toolGetSurveyDetail:
		result = d.userData.AssessmentDetail(ctx, userID)
	case toolGuidanceByCode:
		result = d.userData.GuidanceByCode(ctx, args.Code)
	case toolGuidanceByDimension:
		result = d.userData.GuidanceByDimension(ctx, args.Dimension)
	case toolQueryKnowledgeBase:
		result = d.userData.KnowledgeQuery(ctx, args.Query)
	default:
		d.logger.Warn("unknown tool requested", zap.String("tool", call.Name))
		return fmt.Sprintf("未知工具：%s", call.Name)
	}

	if result == "" {
		return "未查询到相关数据"
	}
	d.logger.Debug("tool dispatched",
		zap.String("tool", call.Name),
		zap.Int("result_len", len(result)),
	)
	return result
}
