package nav

import (
	"fmt"
	"strings"

	"github.com/m3rciful/pagebot/core/stats"
)

// statsTimeLayout renders timestamps in UTC, second precision.
const statsTimeLayout = "2006-01-02 15:04:05"

const helpText = "Here's how to use this bot:\n\n" +
	"- Click on any button to navigate through different pages\n" +
	"- Send any text message to see the main menu\n" +
	"- Use /start to return to the main menu\n" +
	"- Use /help to see this message again\n" +
	"- Use /stats to see your interaction statistics"

func welcomeText(s Sender) string {
	return fmt.Sprintf("Welcome %s! I'm your interactive bot. Choose an option below:", s.DisplayName())
}

func greetingText(s Sender) string {
	return fmt.Sprintf("Hello %s! 👋 Hi there! I'm your Python Backend Developer passionate about turning data challenges into elegant solutions.", s.DisplayName())
}

func statsText(sum stats.Summary) string {
	var b strings.Builder
	b.WriteString("📊 Your Interaction Statistics 📊\n\n")
	fmt.Fprintf(&b, "Total interactions: %d\n", sum.Total)
	if sum.MostVisited != nil {
		fmt.Fprintf(&b, "Most visited page: %s (%d times)\n", sum.MostVisited.Label, sum.MostVisited.Count)
	}
	if sum.FirstSeen != nil {
		fmt.Fprintf(&b, "First interaction: %s\n", sum.FirstSeen.UTC().Format(statsTimeLayout))
	}
	return b.String()
}
