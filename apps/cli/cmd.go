package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/nav"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/otp"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/firebase"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/notify"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	readLineFunc     = readLine          // mockable

	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New("not signed in")
)

const msgSessionExpired = "Your session has expired. Please log in again."

type commandLine struct {
	sess     *session.Store
	provider identity.Provider
	toasts   *notify.Toasts
	nav      *routes.Redirector // login screen requests from the backend client
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -phone PHONE -recaptcha TOKEN  - sign in with an SMS code (prompted)")
	fmt.Fprintln(cli.out, "  admin-login -email EMAIL             - sign in as a school administrator (password prompted)")
	fmt.Fprintln(cli.out, "  superadmin-login -email EMAIL        - sign in as a super administrator (password prompted)")
	fmt.Fprintln(cli.out, "  firebase-token -email EMAIL          - print a Firebase ID token (password prompted)")
	fmt.Fprintln(cli.out, "  logout                               - end the session")
	fmt.Fprintln(cli.out, "  whoami                               - show the signed in user")
	fmt.Fprintln(cli.out, "  menu                                 - list the navigation of the signed in user")
	fmt.Fprintln(cli.out, "  refresh                              - renew the session token")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	defer cli.flushToasts()

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginPhone := loginCmd.String("phone", "", "The 10-digit phone number. The code will be prompted next.")
	loginCaptcha := loginCmd.String("recaptcha", "", "A reCAPTCHA token solved for the sign-in.")

	emailCmd := flag.NewFlagSet(args[1], flag.ContinueOnError)
	email := emailCmd.String("email", "", "The account email. The password will be prompted next.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginPhone == "" || *loginCaptcha == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.phoneLogin(ctx, *loginPhone, *loginCaptcha)

	case "admin-login", "superadmin-login", "firebase-token":
		if err := emailCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			emailCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			emailCmd.Usage()
			return errHelp
		}
		switch args[1] {
		case "admin-login":
			return cli.login(ctx, session.AdminCredentials{Email: *email, Password: string(pwd)})
		case "superadmin-login":
			return cli.login(ctx, session.SuperAdminCredentials{Email: *email, Password: string(pwd)})
		default:
			return cli.firebaseToken(ctx, *email, string(pwd))
		}

	case "logout":
		cli.sess.Logout(ctx)
		return nil
	case "whoami":
		return cli.whoami()
	case "menu":
		return cli.menu()
	case "refresh":
		if !cli.sess.IsAuthenticated() {
			return errNotSignedIn
		}
		if err := cli.sess.RefreshToken(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "session refreshed")
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) phoneLogin(ctx context.Context, phone, captchaToken string) error {
	captcha := firebase.NewRecaptcha()
	flow := otp.NewFlow(cli.provider, captcha, nil)
	defer flow.Close()

	if err := captcha.SetToken(captchaToken); err != nil {
		return err
	}
	flow.SetPhone(phone)
	if err := flow.SendCode(ctx); err != nil {
		return errors.New(flow.Error())
	}

	fmt.Fprintf(cli.out, "Enter the code sent to %s:", flow.Phone())
	code, err := readLineFunc()
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	flow.SetCode(code)
	if _, err = flow.Verify(ctx); err != nil {
		return errors.New(flow.Error())
	}

	proof, _ := flow.Proof()
	return cli.login(ctx, proof)
}

func (cli *commandLine) login(ctx context.Context, proof session.LoginProof) error {
	p, err := cli.sess.Login(ctx, proof)
	if err != nil {
		// a rejected sign-in is not an expired session
		if cli.nav != nil {
			cli.nav.Take()
		}
		return err
	}
	fmt.Fprintf(cli.out, "signed in as %s (%s)\n", p.DisplayName, p.Role)
	return nil
}

func (cli *commandLine) firebaseToken(ctx context.Context, email, pwd string) error {
	cred, err := cli.provider.SignInEmailPassword(ctx, email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, cred.IDToken)
	return nil
}

func (cli *commandLine) whoami() error {
	p := cli.sess.User()
	if p == nil {
		return errNotSignedIn
	}
	fmt.Fprintf(cli.out, "%s\n", p.FullName())
	fmt.Fprintf(cli.out, "  role:    %s\n", p.Role)
	fmt.Fprintf(cli.out, "  email:   %s\n", p.Email)
	fmt.Fprintf(cli.out, "  phone:   %s\n", otp.FormatDisplay(p.PhoneNumber))
	fmt.Fprintf(cli.out, "  school:  %s\n", cli.sess.SchoolID(context.Background()))
	return nil
}

func (cli *commandLine) menu() error {
	p := cli.sess.User()
	if p == nil {
		return errNotSignedIn
	}
	for _, item := range nav.ItemsFor(p) {
		fmt.Fprintf(cli.out, "%-16s %s\n", item.Label, item.Path)
	}
	return nil
}

func (cli *commandLine) flushToasts() {
	if cli.toasts != nil {
		for _, t := range cli.toasts.Drain() {
			fmt.Fprintf(cli.out, "[%s] %s\n", t.Kind, t.Message)
		}
	}
	if cli.nav != nil {
		if _, ok := cli.nav.Take(); ok {
			fmt.Fprintln(cli.out, msgSessionExpired)
		}
	}
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
