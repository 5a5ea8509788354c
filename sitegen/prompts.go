package sitegen

import "fmt"

const intentSystemPrompt = `You are an assistant that understands Tamil and converts spoken Tamil into a detailed website intent in English. Always elaborate dynamically, include possible features, sections, and describe the purpose of the site in multiple sentences.`

const codeSystemPrompt = `You are a coding assistant that generates complete, production-ready multi-file websites based on user intent.

Always:
- Produce professional, responsive HTML using Tailwind CSS via CDN (never use PostCSS or @import).
- Include:
  - index.html with multiple sections
  - style.css for extra custom styles
  - script.js for interactivity (animations, smooth scroll, etc.)
  - server.js using Express to serve static files
  - package.json with correct dependencies and a start script

  - Each Image must have a unique static Unsplash image URL (https://images.unsplash.com/...) with parameters ?w=800&h=600&fit=crop
  - Include alt text for each image

  - Use Tailwind classes: object-cover rounded-lg mb-4 w-full h-64

  - Ensure all images are visible and evenly spaced
   **If a section (like Services, Products, or Team) contains multiple cards, each card must use a different static Unsplash CDN image URL (do not reuse the same one).**

 Fill sections with relevant sample content so the site feels complete.
- Keep filenames consistent with references in the code.
- Avoid React or build tools unless the user explicitly requests them.
- Each navbar link must be an anchor tag linking to a matching section ID on the page.
- Add smooth scrolling for anchor navigation using CSS or JavaScript.

Format the output EXACTLY as:
--- index.html ---
<code>
--- style.css ---
<code>
--- script.js ---
<code>
--- server.js ---
<code>
--- package.json ---
<code>`

func intentUserPrompt(text string) string {
	return fmt.Sprintf("Tamil Input: \"%s\". What kind of website does the user want?", text)
}

func codeUserPrompt(intent string) string {
	return "Intent: " + intent + "\n\nGenerate the full code as files (index.html, style.css, script.js, server.js, package.json). Follow the output format exactly."
}
