package plugins

import (
	"context"
	"fmt"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/config"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/wneessen/go-mail"
)

// defaultSubject 模型未给出主题时使用
const defaultSubject = "我是您的AI助理，您有一封邮件请查看"

// MailSender 投递已构造好的邮件
type MailSender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// smtpSender 每次发送建立一次 SMTPS 连接
type smtpSender struct {
	conf config.EmailConfig
}

func (s *smtpSender) Send(ctx context.Context, msg *mail.Msg) error {
	c, err := mail.NewClient(s.conf.Host,
		mail.WithPort(s.conf.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.conf.Username),
		mail.WithPassword(s.conf.Password),
	)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msg)
}

// Email 以配置的发件账号发送纯文本邮件
func (p *Plugins) Email() agent_tools.Tool {
	return agent_tools.NewLocalTool(NameEmail, "向指定用户发送邮件信息",
		map[string]*schema.ParameterInfo{
			"receiver":      {Type: schema.String, Desc: "收件人的邮箱地址", Required: true},
			"email_message": {Type: schema.String, Desc: "邮件正文", Required: true},
			"subject":       {Type: schema.String, Desc: "邮件主题"},
		},
		p.sendEmail)
}

func (p *Plugins) sendEmail(ctx context.Context, args map[string]any) (string, error) {
	receiver := agent_tools.StringArg(args, "receiver")
	if receiver == "" {
		return "", errors.New(errors.ErrInvalidParameter, "send_email: receiver 不能为空")
	}
	if p.conf.Email.Username == "" {
		return "", errors.New(errors.ErrToolFailed, "send_email: 未配置发件账号")
	}

	msg, err := p.buildMail(receiver, agent_tools.StringArg(args, "subject"), agent_tools.StringArg(args, "email_message"))
	if err != nil {
		return "", err
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		g.Log().Warningf(ctx, "send email to %s failed: %v", receiver, err)
		return "", errors.Wrapf(err, errors.ErrToolFailed, "send_email: 发送失败")
	}
	g.Log().Infof(ctx, "email sent to %s", receiver)
	return fmt.Sprintf("邮件已发送至 %s，请提醒收件人查收", receiver), nil
}

func (p *Plugins) buildMail(receiver, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(p.conf.Email.SenderName, p.conf.Email.Username); err != nil {
		return nil, errors.Wrapf(err, errors.ErrToolFailed, "send_email: 发件地址无效")
	}
	if err := msg.To(receiver); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidParameter, "send_email: 收件地址无效 %s", receiver)
	}
	if subject == "" {
		subject = defaultSubject
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
