package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/terra-clan/staffing-engine/internal/matching"
	"github.com/terra-clan/staffing-engine/internal/models"
)

const (
	defaultProjectSpeaker = "プロジェクトエージェント"
	defaultUserSpeaker    = "ユーザーエージェント"
	defaultTeamSize       = "中規模"
	defaultWorkStyle      = "フルタイム"
)

// Transcript renders the fixed interview dialogue. Turns alternate between the
// project agent and the candidate's agent, starting with the project side.
func Transcript(c matching.Candidate, p *models.Project, now time.Time) []models.ConversationTurn {
	projectSpeaker := defaultProjectSpeaker
	if p.Agent != nil && p.Agent.Name != "" {
		projectSpeaker = p.Agent.Name
	}
	userSpeaker := defaultUserSpeaker
	if c.AgentName != "" {
		userSpeaker = c.AgentName
	}

	teamSize := orDefault(c.Preferences.TeamSize, defaultTeamSize)
	workStyle := orDefault(c.Preferences.WorkStyle, defaultWorkStyle)

	requirements := ""
	if strings.TrimSpace(p.RequirementsDoc) != "" {
		requirements = "要件定義書に記載の通り、"
	}

	messages := []string{
		fmt.Sprintf("こんにちは、%sさん。%sプロジェクトのエージェントです。本日は面接のお時間をいただき、ありがとうございます。", c.Name, p.Name),
		fmt.Sprintf("こんにちは。%sさんを代理してお話しさせていただきます。このプロジェクトに大変興味を持っています。", c.Name),
		fmt.Sprintf("まず、%sさんのスキルについてお聞かせください。保有スキルは%sとのことですが、実務経験についてお聞かせいただけますか？", c.Name, strings.Join(c.Skills, "、")),
		fmt.Sprintf("%sさんは%sについて豊富な経験を持っています。特に%sの分野での実績があります。", c.Name, joinFirst(c.Skills, 2, "と"), strings.Join(c.Industries, "、")),
		fmt.Sprintf("素晴らしいですね。このプロジェクトでは%s様々な技術スキルが必要になります。チームでの協働経験についてはいかがでしょうか？", requirements),
		fmt.Sprintf("%sさんは%sのチームでの経験があり、%sでの勤務が可能です。コミュニケーションを大切にし、チームに貢献することを重視しています。", c.Name, teamSize, workStyle),
		fmt.Sprintf("%sさんのスキルセットと経験は、このプロジェクトの要件と非常にマッチしていると判断いたしました。ぜひご参加いただきたいと思います。", c.Name),
		fmt.Sprintf("ありがとうございます。%sさんも、このプロジェクトで自身のスキルを活かせることを楽しみにしています。ぜひ参加させていただきたいと思います。", c.Name),
	}

	turns := make([]models.ConversationTurn, len(messages))
	for i, msg := range messages {
		speaker := projectSpeaker
		if i%2 == 1 {
			speaker = userSpeaker
		}
		turns[i] = models.ConversationTurn{
			Speaker:   speaker,
			Message:   msg,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
	}
	return turns
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func joinFirst(values []string, n int, sep string) string {
	if len(values) > n {
		values = values[:n]
	}
	return strings.Join(values, sep)
}
