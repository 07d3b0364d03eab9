package discord

import (
	"fmt"
	"time"

	"disbahn/models"

	"github.com/bwmarrin/discordgo"
)

// Embed colours per disruption class.
const (
	colourConstruction = 0xf5c211 // HIM1
	colourDanger       = 0xc1121c // HIM2
	colourInfo         = 0x154889
)

const footerIconURL = "https://www.zuginfo.nrw/img/customer/apple-touch-icon.png"

const footerText = "Quelle: https://zuginfo.nrw/ – Alle Angaben ohne Gewehr \U0001F52B"

// hintText fills the Hinweis field of every announcement embed.
const hintText = "Diese Meldung wird bei Änderungen automatisch bearbeitet, ohne dass eine neue Benachrichtigung erfolgt."

// iconURL returns the thumbnail for a disruption class. Unknown classes get
// the generic information sign.
func iconURL(icon string) string {
	switch icon {
	case "HIM1":
		return "https://upload.wikimedia.org/wikipedia/commons/thumb/a/a9/Zeichen_123_-_Arbeitsstelle%2C_StVO_2013.svg/273px-Zeichen_123_-_Arbeitsstelle%2C_StVO_2013.svg.png"
	case "HIM2":
		return "https://upload.wikimedia.org/wikipedia/commons/thumb/0/02/Zeichen_101_-_Gefahrstelle%2C_StVO_1970.svg/273px-Zeichen_101_-_Gefahrstelle%2C_StVO_1970.svg.png"
	default:
		return "https://upload.wikimedia.org/wikipedia/commons/thumb/5/56/Zeichen_365-61_-_Informationsstelle%2C_StVO_2013.svg/240px-Zeichen_365-61_-_Informationsstelle%2C_StVO_2013.svg.png"
	}
}

// iconColour returns the embed colour for a disruption class.
func iconColour(icon string) int {
	switch icon {
	case "HIM1":
		return colourConstruction
	case "HIM2":
		return colourDanger
	default:
		return colourInfo
	}
}

// BuildPayload renders an announcement as the embed payload posted to every
// webhook. Validity times use Discord's timestamp markup so clients show
// them in the reader's timezone.
func BuildPayload(a models.Announcement) Payload {
	embed := &discordgo.MessageEmbed{
		Title:       a.Title,
		URL:         a.Link,
		Description: a.Description,
		Color:       iconColour(a.Icon),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: iconURL(a.Icon)},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Beginn:", Value: fmt.Sprintf("<t:%d:F>", a.ValidityBegin.Unix()), Inline: true},
			{Name: "Ende:", Value: fmt.Sprintf("<t:%d:F>", a.ValidityEnd.Unix()), Inline: true},
			{Name: "Hinweis:", Value: hintText, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    footerText,
			IconURL: footerIconURL,
		},
		Timestamp: a.Published.UTC().Format(time.RFC3339),
	}

	return Payload{Embeds: []*discordgo.MessageEmbed{embed}}
}
