package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
)

// Campaign kinds.
const (
	KindNewsletter   = "newsletter"
	KindRecipeUpdate = "recipe_update"
	KindPromotional  = "promotional"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags produces the plain-text body from HTML content.
func StripTags(html string) string {
	return tagPattern.ReplaceAllString(html, "")
}

var headings = map[string]string{
	KindNewsletter:   "NMA Foods Newsletter",
	KindRecipeUpdate: "🍳 New Recipe Alert!",
	KindPromotional:  "🎉 Special Offer!",
}

var layout = template.Must(template.New("layout").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #8B4513, #D2691E); padding: 20px; text-align: center;">
    <h1 style="color: white; margin: 0;">{{.Heading}}</h1>
  </div>
  <div style="padding: 30px 20px; background: white;">
    {{.Content}}
  </div>
  <div style="background: #f8f8f8; padding: 20px; text-align: center; color: #666; font-size: 14px;">
    <p>NMA Foods - Premium Spices from Ghana</p>
  </div>
</div>`))

// Render wraps content in the layout for kind. Content is trusted HTML
// written by staff. Unknown kinds send the content unwrapped.
func Render(kind, subject, content string) (Message, error) {
	msg := Message{Subject: subject, HTML: content, Text: StripTags(content)}

	heading, ok := headings[kind]
	if !ok {
		return msg, nil
	}
	var buf bytes.Buffer
	err := layout.Execute(&buf, struct {
		Heading string
		Content template.HTML
	}{heading, template.HTML(content)})
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	msg.HTML = buf.String()
	return msg, nil
}

const welcomeSubject = "Welcome to NMA Foods Community! 🌶️"

var welcomeHTML = strings.TrimSpace(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #8B4513, #D2691E); padding: 40px 20px; text-align: center;">
    <h1 style="color: white; margin: 0; font-size: 28px;">Welcome to NMA Foods!</h1>
    <p style="color: white; margin: 10px 0 0 0; font-size: 16px;">Premium spices from Ghana to your kitchen</p>
  </div>
  <div style="padding: 40px 20px; background: white;">
    <h2 style="color: #8B4513; margin-bottom: 20px;">Thank you for joining our community!</h2>
    <p>We're excited to have you on this flavorful journey. As a subscriber, you'll receive:</p>
    <ul style="color: #666; line-height: 1.6;">
      <li>🌶️ <strong>Exclusive recipes</strong> featuring our premium spices</li>
      <li>💡 <strong>Cooking tips</strong> from our community of food lovers</li>
      <li>🎯 <strong>Special offers</strong> and early access to new products</li>
      <li>📚 <strong>Health insights</strong> about the benefits of our spices</li>
      <li>🎉 <strong>Community stories</strong> and user-generated content</li>
    </ul>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.ShopURL}}" style="background: linear-gradient(135deg, #8B4513, #D2691E); color: white; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold;">Start Shopping</a>
    </div>
  </div>
  <div style="background: #f8f8f8; padding: 20px; text-align: center; color: #666; font-size: 14px;">
    <p>NMA Foods - Premium Spices from Ghana</p>
  </div>
</div>`)

var welcomeTemplate = template.Must(template.New("welcome").Parse(welcomeHTML))

// Welcome builds the welcome email for a new subscriber.
func Welcome(to, siteURL string) (Message, error) {
	shop := strings.TrimSuffix(siteURL, "/") + "/shop"
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, struct{ ShopURL string }{shop}); err != nil {
		return Message{}, fmt.Errorf("render welcome: %w", err)
	}
	text := "Welcome to NMA Foods Community!\n\n" +
		"Thank you for joining our community! We're excited to have you on this flavorful journey.\n\n" +
		"As a subscriber, you'll receive:\n" +
		"- Exclusive recipes featuring our premium spices\n" +
		"- Cooking tips from our community of food lovers\n" +
		"- Special offers and early access to new products\n" +
		"- Health insights about the benefits of our spices\n" +
		"- Community stories and user-generated content\n\n" +
		"Visit our shop: " + shop + "\n\n" +
		"NMA Foods - Premium Spices from Ghana"
	return Message{To: to, Subject: welcomeSubject, HTML: buf.String(), Text: text}, nil
}
