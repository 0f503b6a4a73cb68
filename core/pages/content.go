package pages

// BackLabel is the caption of every back control.
const BackLabel = "⬅️ Back"

const mainText = "I look forward to working with you and contributing to your success!:"

const aboutText = "🏢 *About Me*\n\n" +
	"Python Backend Developer with expertise in data automation and API integration. " +
	"Since 2022, I've specialized in building efficient systems using Python, RestAPI, Google API, SerpAPI, and OpenAI. " +
	"\n\n*💻 Technical Skills:*  \n\n- Python & Data Management\n - RestAPI & API Integration\n" +
	" - NetApp & Oracle Storage Solutions\n - Web Development (HTML/CSS/JS)\n" +
	"\n\n*🔍 Experience:*  \n\n- Python Backend Developer (2022-Present)\n - Junior Web Designer (2019-2020)\n - Web Developer (2018)\n" +
	"\n\nI'm passionate about solving complex problems through code and creating streamlined data pipelines. " +
	"Currently expanding my knowledge in data engineering and AI applications."

const portfolioText = "*Welcome to my portfolio*\n\n🚀 Explore what I do:\n\n" +
	"📄 Resume: https://shorturl.at/jCcbu \n" +
	"📂 GitHub: https://github.com/No0Bitah \n" +
	"🌐 LinkedIn: https://www.linkedin.com/in/jomari-daison-406624334 \n"

// MainMenu is the control set of the root page.
func MainMenu() []Transition {
	return []Transition{
		{Label: "📚 About Me", Target: About},
		{Label: "🗃️ Portfolio", Target: Portfolio},
	}
}

func back() []Transition {
	return []Transition{{Label: BackLabel, Target: Main, Back: true}}
}

// Default returns the reference registry: a main menu linking to the about
// and portfolio pages, both of which only lead back.
func Default() *Registry {
	r, err := NewRegistry(Main,
		Page{ID: Main, Title: "Main menu", Content: mainText, Format: FormatPlain, Transitions: MainMenu()},
		Page{ID: About, Title: "About", Content: aboutText, Format: FormatMarkdown, Transitions: back()},
		Page{ID: Portfolio, Title: "Portfolio", Content: portfolioText, Format: FormatMarkdown, Transitions: back()},
	)
	if err != nil {
		panic("pages: invalid default registry: " + err.Error())
	}
	return r
}
